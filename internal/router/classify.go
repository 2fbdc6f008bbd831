package router

import "strings"

// Message types worth persisting.
const (
	TypeChat     = "chat"
	TypeAudio    = "audio"
	TypePTT      = "ptt"
	TypeVideo    = "video"
	TypeImage    = "image"
	TypeDocument = "document"
	TypeVCard    = "vcard"
	TypeSticker  = "sticker"
)

// Marker starts every message this system sends itself. Its echo is already
// stored and must not be stored again.
const Marker = "\u200e"

var acceptedTypes = map[string]bool{
	TypeChat:     true,
	TypeAudio:    true,
	TypePTT:      true,
	TypeVideo:    true,
	TypeImage:    true,
	TypeDocument: true,
	TypeVCard:    true,
	TypeSticker:  true,
}

// Reject returns why m must not be persisted, or "" when it should be.
func Reject(m Message) string {
	if m.IsBroadcast {
		return "status broadcast"
	}
	if !acceptedTypes[m.Type] {
		return "unsupported type"
	}
	if m.FromMe {
		if strings.HasPrefix(m.Body, Marker) {
			return "own echo"
		}
		// The media follow-up event carries the content.
		if !m.HasMedia && m.Type != TypeChat && m.Type != TypeVCard {
			return "media placeholder"
		}
	}
	return ""
}
