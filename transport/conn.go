// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/crwiz-project/crwiz/lib/netutil"
	"github.com/crwiz-project/crwiz/protocol"
)

// EventError is the frame name the server uses for channel failures.
const EventError = "error"

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 4 << 20

// writeTimeout bounds a single frame write, including close frames.
const writeTimeout = 10 * time.Second

// ServerError is a channel-level failure reported by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return "transport: server error: " + e.Message
}

// DialConfig holds configuration for [Dial].
type DialConfig struct {
	// URL is the websocket endpoint, for example
	// "ws://localhost:5000/socket".
	URL string
	// Token is the login token. It is sent as the "token" query
	// parameter and in the Authorization header.
	Token string
	// UserAgent is sent with the handshake when set.
	UserAgent string
	// Dialer is used to open the connection. If nil,
	// websocket.DefaultDialer is used.
	Dialer *websocket.Dialer
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Conn is one push-channel connection.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	// gorilla/websocket allows one concurrent writer.
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// Dial opens the client side of the push channel.
func Dial(ctx context.Context, config DialConfig) (*Conn, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("transport: URL is required")
	}
	endpoint, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("transport: invalid URL %q: %w", config.URL, err)
	}
	switch endpoint.Scheme {
	case "ws", "wss":
	case "http":
		endpoint.Scheme = "ws"
	case "https":
		endpoint.Scheme = "wss"
	default:
		return nil, fmt.Errorf("transport: URL %q must use ws or wss", config.URL)
	}

	header := http.Header{}
	if config.Token != "" {
		query := endpoint.Query()
		query.Set("token", config.Token)
		endpoint.RawQuery = query.Encode()
		header.Set("Authorization", "Token "+config.Token)
	}
	if config.UserAgent != "" {
		header.Set("User-Agent", config.UserAgent)
	}

	dialer := config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	ws, response, err := dialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if response != nil {
			defer response.Body.Close()
			return nil, fmt.Errorf("transport: dialing %s: %d %s: %w",
				endpoint.Redacted(), response.StatusCode, netutil.ErrorBody(response.Body), err)
		}
		return nil, fmt.Errorf("transport: dialing %s: %w", endpoint.Redacted(), err)
	}
	return newConn(ws, config.Logger), nil
}

// AcceptConfig holds configuration for [Accept].
type AcceptConfig struct {
	// CheckOrigin is passed to the upgrader. If nil every origin is
	// accepted.
	CheckOrigin func(*http.Request) bool
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Accept upgrades an HTTP request into the server side of the push
// channel. On failure the upgrader has already written an HTTP error.
func Accept(writer http.ResponseWriter, request *http.Request, config AcceptConfig) (*Conn, error) {
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	ws, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: upgrading connection: %w", err)
	}
	return newConn(ws, config.Logger), nil
}

func newConn(ws *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws, logger: logger}
}

// Emit sends an outgoing event.
func (c *Conn) Emit(event protocol.Event) error {
	frame, err := protocol.Encode(event)
	if err != nil {
		return err
	}
	return c.WriteFrame(frame)
}

// WriteFrame sends a raw frame.
func (c *Conn) WriteFrame(frame protocol.Frame) error {
	encoded, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("transport: encoding %s frame: %w", frame.Event, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("transport: setting write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, encoded); err != nil {
		return fmt.Errorf("transport: writing %s frame: %w", frame.Event, err)
	}
	return nil
}

// Run reads frames and passes each to handler, in arrival order, until
// the connection ends or ctx is cancelled. A normal close returns nil.
// A server "error" frame returns a *ServerError. Frames that are not
// valid JSON are logged and skipped.
func (c *Conn) Run(ctx context.Context, handler func(protocol.Frame)) error {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if netutil.IsExpectedCloseError(err) {
				return nil
			}
			return fmt.Errorf("transport: reading frame: %w", err)
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame", "type", messageType)
			continue
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
			c.logger.Warn("dropping malformed frame", "error", err, "size", len(data))
			continue
		}
		if frame.Event == EventError {
			return &ServerError{Message: errorMessage(frame.Data)}
		}
		handler(frame)
	}
}

// ReadFrame reads a single frame. It is for the server side and tests;
// clients use Run.
func (c *Conn) ReadFrame() (protocol.Frame, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return protocol.Frame{}, fmt.Errorf("transport: reading frame: %w", err)
	}
	var frame protocol.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return protocol.Frame{}, fmt.Errorf("transport: decoding frame: %w", err)
	}
	return frame, nil
}

// Close sends a normal close frame and closes the connection. It is
// safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		writeErr := c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeTimeout))
		c.writeMu.Unlock()

		c.closeErr = c.ws.Close()
		if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) && !netutil.IsExpectedCloseError(writeErr) {
			c.logger.Debug("close frame not sent", "error", writeErr)
		}
	})
	return c.closeErr
}

func errorMessage(data json.RawMessage) string {
	var message string
	if json.Unmarshal(data, &message) == nil {
		return message
	}
	var object struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &object) == nil {
		if object.Message != "" {
			return object.Message
		}
		return object.Error
	}
	return string(data)
}
