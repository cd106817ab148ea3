// Copyright 2026 The CRWIZ Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"encoding/json"

	"github.com/crwiz-project/crwiz/api"
	"github.com/crwiz-project/crwiz/protocol"
	"github.com/crwiz-project/crwiz/session"
)

// historyData is the payload of a logged chat message. Older logs use
// "message" where live events use "msg".
type historyData struct {
	Msg     string `json:"msg"`
	Message string `json:"message"`
	URL     string `json:"url"`
	Private bool   `json:"private"`
}

// historyLine converts a logged chat event into a chat line. Entries
// whose payload does not decode are skipped.
func historyLine(entry api.LogEntry) (session.ChatLine, bool) {
	var data historyData
	if len(entry.Data) > 0 {
		if err := json.Unmarshal(entry.Data, &data); err != nil {
			return session.ChatLine{}, false
		}
	}
	line := session.ChatLine{
		From:    entry.User.Name,
		FromID:  entry.User.ID,
		Private: data.Private,
	}
	switch entry.Event {
	case protocol.EventTextMessage:
		line.Text = data.Msg
		if line.Text == "" {
			line.Text = data.Message
		}
	case protocol.EventImageMessage:
		line.ImageURL = data.URL
	default:
		return session.ChatLine{}, false
	}
	return line, true
}
