package wa

import (
	"github.com/matheus3301/wppdesk/internal/router"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// Message types not persisted by the router.
const (
	typeLocation = "location"
	typeUnknown  = "unknown"
)

// JIDResolver maps a JID onto its canonical form (e.g. LID to phone number).
type JIDResolver func(types.JID) types.JID

// ParseMessage normalizes a live whatsmeow message event. resolve may be nil.
func ParseMessage(evt *events.Message, resolve JIDResolver) router.Message {
	if resolve == nil {
		resolve = func(j types.JID) types.JID { return j }
	}
	info := evt.Info
	msg := evt.Message
	// The alternate address of a direct chat is the peer's: the recipient
	// for our own messages, the sender otherwise.
	chatAlt := info.SenderAlt
	if info.IsFromMe {
		chatAlt = info.RecipientAlt
	}
	chat := canonical(info.Chat, chatAlt, resolve)
	sender := canonical(info.Sender, info.SenderAlt, resolve)

	m := router.Message{
		ID:          info.ID,
		Chat:        userAddress(chat),
		Sender:      userAddress(sender),
		FromMe:      info.IsFromMe,
		IsGroup:     info.IsGroup || chat.Server == types.GroupServer,
		IsBroadcast: info.Chat.ToNonAD() == types.StatusBroadcastJID,
		Type:        detectMessageType(msg),
		Body:        extractBody(msg),
		PushName:    info.PushName,
		Timestamp:   info.Timestamp,
		Raw:         msg,
	}
	if !m.IsGroup {
		// In a direct chat the individual party is the peer, also for our own messages.
		m.Sender = m.Chat
	}
	if ctx := contextInfo(msg); ctx != nil {
		m.QuotedID = ctx.GetStanzaID()
	}
	m.HasMedia, m.MimeType, m.FileName = mediaInfo(msg)
	return m
}

// canonical resolves jid to its phone number form. When the store has no
// mapping for a LID, the alternate address carried by the event is tried.
func canonical(jid, alt types.JID, resolve JIDResolver) types.JID {
	jid = resolve(jid.ToNonAD())
	if isLID(jid) && !alt.IsEmpty() {
		if a := resolve(alt.ToNonAD()); !isLID(a) {
			return a
		}
	}
	return jid
}

func isLID(jid types.JID) bool {
	return jid.Server == types.HiddenUserServer || jid.Server == types.HostedLIDServer
}

// userAddress is the user part of jid, or the full JID for an unresolved
// LID so sends still reach it.
func userAddress(jid types.JID) string {
	if isLID(jid) {
		return jid.String()
	}
	return jid.User
}

func extractBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case documentMessage(msg) != nil:
		return documentMessage(msg).GetCaption()
	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetVcard()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return typeUnknown
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return router.TypeChat
	case msg.GetImageMessage() != nil:
		return router.TypeImage
	case msg.GetVideoMessage() != nil:
		return router.TypeVideo
	case msg.GetAudioMessage() != nil:
		if msg.GetAudioMessage().GetPTT() {
			return router.TypePTT
		}
		return router.TypeAudio
	case documentMessage(msg) != nil:
		return router.TypeDocument
	case msg.GetStickerMessage() != nil:
		return router.TypeSticker
	case msg.GetContactMessage() != nil:
		return router.TypeVCard
	case msg.GetLocationMessage() != nil:
		return typeLocation
	default:
		return typeUnknown
	}
}

func documentMessage(msg *waE2E.Message) *waE2E.DocumentMessage {
	if d := msg.GetDocumentMessage(); d != nil {
		return d
	}
	return msg.GetDocumentWithCaptionMessage().GetMessage().GetDocumentMessage()
}

func mediaInfo(msg *waE2E.Message) (has bool, mimeType, fileName string) {
	if msg == nil {
		return false, "", ""
	}
	switch {
	case msg.GetImageMessage() != nil:
		return true, msg.GetImageMessage().GetMimetype(), ""
	case msg.GetVideoMessage() != nil:
		return true, msg.GetVideoMessage().GetMimetype(), ""
	case msg.GetAudioMessage() != nil:
		return true, msg.GetAudioMessage().GetMimetype(), ""
	case documentMessage(msg) != nil:
		d := documentMessage(msg)
		return true, d.GetMimetype(), d.GetFileName()
	case msg.GetStickerMessage() != nil:
		return true, msg.GetStickerMessage().GetMimetype(), ""
	}
	return false, "", ""
}

func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	if msg == nil {
		return nil
	}
	switch {
	case msg.GetExtendedTextMessage() != nil:
		return msg.GetExtendedTextMessage().GetContextInfo()
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetContextInfo()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetContextInfo()
	case msg.GetAudioMessage() != nil:
		return msg.GetAudioMessage().GetContextInfo()
	case documentMessage(msg) != nil:
		return documentMessage(msg).GetContextInfo()
	case msg.GetStickerMessage() != nil:
		return msg.GetStickerMessage().GetContextInfo()
	case msg.GetContactMessage() != nil:
		return msg.GetContactMessage().GetContextInfo()
	}
	return nil
}
