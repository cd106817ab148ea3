// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/crwiz-project/crwiz/lib/netutil"
	"github.com/crwiz-project/crwiz/protocol"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the API root including its version prefix, for
	// example "http://localhost:5000/api/v2".
	BaseURL string
	// Token is the login token sent with every request.
	Token string
	// UserAgent is sent with every request when set.
	UserAgent string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Client talks to the chat server's REST API on behalf of one login
// token. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("api: BaseURL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("api: Token is required")
	}
	parsed, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("api: BaseURL %q must use http or https", config.BaseURL)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		userAgent:  config.UserAgent,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Token returns the login token the client authenticates with.
func (c *Client) Token() string {
	return c.token
}

// GetRoom fetches a room's properties and occupants.
func (c *Client) GetRoom(ctx context.Context, room string) (*Room, error) {
	var response Room
	if err := c.getJSON(ctx, "/room/"+url.PathEscape(room), &response); err != nil {
		return nil, fmt.Errorf("api: get room %q: %w", room, err)
	}
	return &response, nil
}

// GetUser fetches a user's profile.
func (c *Client) GetUser(ctx context.Context, userID int) (*User, error) {
	var response User
	if err := c.getJSON(ctx, "/user/"+strconv.Itoa(userID), &response); err != nil {
		return nil, fmt.Errorf("api: get user %d: %w", userID, err)
	}
	if response.ID == 0 {
		response.ID = userID
	}
	return &response, nil
}

// GetRoomLayout fetches the layout a room is displayed with.
func (c *Client) GetRoomLayout(ctx context.Context, room string) (*Layout, error) {
	var response Layout
	if err := c.getJSON(ctx, "/room/"+url.PathEscape(room)+"/layout", &response); err != nil {
		return nil, fmt.Errorf("api: get layout for room %q: %w", room, err)
	}
	return &response, nil
}

// GetUserLogs fetches a user's event history, keyed by room name.
func (c *Client) GetUserLogs(ctx context.Context, userID int) (History, error) {
	var response History
	if err := c.getJSON(ctx, "/user/"+strconv.Itoa(userID)+"/logs", &response); err != nil {
		return nil, fmt.Errorf("api: get logs for user %d: %w", userID, err)
	}
	if response == nil {
		response = History{}
	}
	return response, nil
}

// GetToken fetches a token's permissions.
func (c *Client) GetToken(ctx context.Context, token string) (*Token, error) {
	var response Token
	if err := c.getJSON(ctx, "/token/"+url.PathEscape(token), &response); err != nil {
		return nil, fmt.Errorf("api: get token: %w", err)
	}
	return &response, nil
}

// GetDialogueChoices asks the server for the wizard's current options.
func (c *Client) GetDialogueChoices(ctx context.Context, userID int) (*protocol.DialogueChoices, error) {
	var response protocol.DialogueChoices
	if err := c.postJSON(ctx, "/get_wizard_dialogue_choices/"+strconv.Itoa(userID), struct{}{}, &response); err != nil {
		return nil, fmt.Errorf("api: get dialogue choices for user %d: %w", userID, err)
	}
	return &response, nil
}

// SubmitDialogueChoice reports the option the wizard sent.
func (c *Client) SubmitDialogueChoice(ctx context.Context, userID int, request SubmitChoiceRequest) (*SubmitChoiceResponse, error) {
	var response SubmitChoiceResponse
	if err := c.postJSON(ctx, "/submit_dialogue_choice/"+strconv.Itoa(userID), request, &response); err != nil {
		return nil, fmt.Errorf("api: submit dialogue choice %q: %w", request.StateName, err)
	}
	return &response, nil
}

// SubmitPerformAction reports the wizard's answer to a perform_action
// prompt.
func (c *Client) SubmitPerformAction(ctx context.Context, userID int, request PerformActionRequest) (*PerformActionResponse, error) {
	var response PerformActionResponse
	if err := c.postJSON(ctx, "/submit_perform_action/"+strconv.Itoa(userID), request, &response); err != nil {
		return nil, fmt.Errorf("api: submit perform action %q: %w", request.ActionName, err)
	}
	return &response, nil
}

// RequestTaskHint asks which option the wizard should most likely pick.
func (c *Client) RequestTaskHint(ctx context.Context, userID int) (*TaskHint, error) {
	var response TaskHint
	if err := c.postJSON(ctx, "/request_task_hint/"+strconv.Itoa(userID), struct{}{}, &response); err != nil {
		return nil, fmt.Errorf("api: request task hint for user %d: %w", userID, err)
	}
	return &response, nil
}

func (c *Client) getJSON(ctx context.Context, path string, response any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decodeBody(body, response)
}

func (c *Client) postJSON(ctx context.Context, path string, request, response any) error {
	body, err := c.doRequest(ctx, http.MethodPost, path, request)
	if err != nil {
		return err
	}
	return decodeBody(body, response)
}

func decodeBody(body []byte, response any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// doRequest performs one authenticated request and returns the body of
// a 2xx response. Any other status becomes an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	request.Header.Set("Authorization", "Token "+c.token)
	request.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		request.Header.Set("User-Agent", c.userAgent)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	apiErr := &APIError{StatusCode: response.StatusCode, Body: string(responseBody)}
	var errorBody struct {
		Error  string `json:"error"`
		Reason string `json:"reason"`
	}
	if json.Unmarshal(responseBody, &errorBody) == nil {
		apiErr.Message = errorBody.Error
		if apiErr.Message == "" {
			apiErr.Message = errorBody.Reason
		}
	}
	c.logger.Debug("api request failed",
		"method", method,
		"path", path,
		"status", response.StatusCode,
		"message", apiErr.Message,
	)
	return nil, apiErr
}
