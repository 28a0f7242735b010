package chat

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType discriminates structured content parts.
type PartType string

const (
	PartText     PartType = "text"
	PartImageURL PartType = "image_url"
)

// ContentPart is one element of a multi-part provider payload.
// Text parts carry Text, image parts carry ImageURL (either a
// storage-backed URL or an inline data URL fallback).
type ContentPart struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

// Message is one turn in the interview. DisplayContent is what the UI
// shows; Parts, when non-empty, is the structured payload replayed
// verbatim to the provider. When Parts is empty the payload is
// DisplayContent itself. Messages are never mutated after append.
type Message struct {
	ID             string        `json:"id"`
	Role           Role          `json:"role"`
	DisplayContent string        `json:"displayContent"`
	Parts          []ContentPart `json:"parts,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// PayloadText returns the plain-string payload for this turn.
func (m Message) PayloadText() string {
	if len(m.Parts) == 0 {
		return m.DisplayContent
	}
	for _, p := range m.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// Clone returns a deep copy, parts included.
func (m Message) Clone() Message {
	out := m
	if len(m.Parts) > 0 {
		out.Parts = make([]ContentPart, len(m.Parts))
		copy(out.Parts, m.Parts)
	}
	return out
}
