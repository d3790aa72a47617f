// Cinecord - Trakt Watch State to Discord Rich Presence Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinecord

package discord

import (
	"github.com/goccy/go-json"
)

// MaxButtons is the number of buttons Discord renders on an activity.
const MaxButtons = 2

// Activity is the rich presence shown on the user's profile.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// Timestamps drive the elapsed/remaining counter. Values are epoch seconds.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
	End   int64 `json:"end,omitempty"`
}

// Assets references images uploaded to the Discord application by key.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Button is a link rendered under the activity.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

type handshake struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string          `json:"cmd"`
	Args  setActivityArgs `json:"args"`
	Nonce string          `json:"nonce"`
}

// setActivityArgs keeps Activity without omitempty so a nil pointer is
// sent as "activity": null, which clears the presence.
type setActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

// response covers DISPATCH, command replies and close payloads.
type response struct {
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Nonce string          `json:"nonce"`
	Data  json.RawMessage `json:"data"`

	// Set on OpClose frames.
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
