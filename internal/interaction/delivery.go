// internal/interaction/delivery.go

// Package interaction describes what the engine needs from the chat
// platform: status artifacts with selectable options, channel placeholders
// and user moves. Actions taken on a prompt come back through a Router.
package interaction

import (
	"context"
)

// Colors used by status artifacts.
const (
	ColorInfo    = 0x3498db
	ColorSuccess = 0x2ecc71
	ColorWarning = 0xf1c40f
	ColorFailure = 0xe74c3c
)

// Field is a titled block of a status artifact.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Status is a message the users of a lobby watch while it is edited.
type Status struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Fields      []Field  `json:"fields,omitempty"`
	Footer      string   `json:"footer,omitempty"`
	Color       int      `json:"color,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
	Prompt      *Prompt  `json:"prompt,omitempty"`
}

// PromptKind selects how options are rendered.
type PromptKind string

const (
	PromptButtons PromptKind = "buttons"
	PromptSelect  PromptKind = "select"
)

// OptionStyle hints at the rendering of a button.
type OptionStyle string

const (
	StylePrimary   OptionStyle = "primary"
	StyleSecondary OptionStyle = "secondary"
	StyleSuccess   OptionStyle = "success"
	StyleDanger    OptionStyle = "danger"
)

// Option is one selectable value of a prompt.
type Option struct {
	Label    string      `json:"label"`
	Value    string      `json:"value"`
	Style    OptionStyle `json:"style,omitempty"`
	Disabled bool        `json:"disabled,omitempty"`
}

// Prompt is a set of options attached to a status artifact. Actions on it
// are reported with the prompt ID.
type Prompt struct {
	ID          string     `json:"id"`
	Kind        PromptKind `json:"kind"`
	Placeholder string     `json:"placeholder,omitempty"`
	// Actors lists the users whose actions are currently accepted. Empty
	// means any user may act.
	Actors  []string `json:"actors,omitempty"`
	Options []Option `json:"options"`
}

// VoiceChannel describes a channel placeholder to create.
type VoiceChannel struct {
	Name      string
	ParentID  string
	UserLimit int
	// Allowed users may connect; everyone else is denied when non-empty.
	Allowed []string
}

// Delivery is the chat platform as seen by the engine.
type Delivery interface {
	SendStatus(ctx context.Context, channelID string, st Status) (messageID string, err error)
	EditStatus(ctx context.Context, channelID, messageID string, st Status) error
	DeleteStatus(ctx context.Context, channelID, messageID string) error

	CreateCategory(ctx context.Context, guildID, name string) (string, error)
	CreateVoiceChannel(ctx context.Context, guildID string, ch VoiceChannel) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	GrantConnect(ctx context.Context, channelID, userID string) error

	MoveUser(ctx context.Context, guildID, userID, channelID string) error
	ChannelMembers(ctx context.Context, guildID, channelID string) ([]string, error)
}

// Mention renders a user reference understood by the platform.
func Mention(userID string) string {
	return "<@" + userID + ">"
}
