package wa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/router"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
// It is the router's provider session.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
	sessionID atomic.Int64
}

var _ router.Session = (*Adapter)(nil)

// NewAdapter opens the device store at deviceDBPath and creates the client.
func NewAdapter(ctx context.Context, deviceDBPath string, logger *zap.Logger) (*Adapter, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wppdesk", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", deviceDBPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create device store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(deviceStore, nil),
		container: container,
		logger:    logger,
	}, nil
}

// SetSessionID binds the adapter to its session record.
func (a *Adapter) SetSessionID(id int64) {
	a.sessionID.Store(id)
}

// SessionID returns the store id of the session record.
func (a *Adapter) SessionID() int64 {
	return a.sessionID.Load()
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// PhoneNumber returns the linked phone number, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to a number or full JID.
func (a *Adapter) SendText(ctx context.Context, to string, text string) (outbox.Sent, error) {
	jid, err := addressJID(to)
	if err != nil {
		return outbox.Sent{}, err
	}
	resp, err := a.client.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return outbox.Sent{}, fmt.Errorf("send message: %w", err)
	}
	return outbox.Sent{ID: resp.ID, Timestamp: resp.Timestamp}, nil
}

// Download fetches and decrypts the media of a parsed message.
func (a *Adapter) Download(ctx context.Context, m router.Message) ([]byte, error) {
	raw, ok := m.Raw.(*waE2E.Message)
	if !ok || raw == nil {
		return nil, errors.New("message has no downloadable payload")
	}
	data, err := a.client.DownloadAny(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("download media %s: %w", m.ID, err)
	}
	return data, nil
}

// Profile returns the name and picture known for a number.
func (a *Adapter) Profile(ctx context.Context, number string) (router.Profile, error) {
	jid, err := addressJID(number)
	if err != nil {
		return router.Profile{}, err
	}
	info, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return router.Profile{}, fmt.Errorf("get contact %s: %w", number, err)
	}
	name := info.FullName
	if name == "" {
		name = info.BusinessName
	}
	return router.Profile{
		Name:       name,
		PushName:   info.PushName,
		PictureURL: a.pictureURL(ctx, jid),
	}, nil
}

// GroupProfile returns the subject and picture of a group.
func (a *Adapter) GroupProfile(ctx context.Context, groupID string) (router.Profile, error) {
	jid := types.NewJID(groupID, types.GroupServer)
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return router.Profile{}, fmt.Errorf("get group %s: %w", groupID, err)
	}
	return router.Profile{
		Name:       info.Name,
		PictureURL: a.pictureURL(ctx, jid),
	}, nil
}

// pictureURL returns "" when the picture is unset or hidden.
func (a *Adapter) pictureURL(ctx context.Context, jid types.JID) string {
	pic, err := a.client.GetProfilePictureInfo(ctx, jid, &whatsmeow.GetProfilePictureParams{})
	if err != nil {
		a.logger.Debug("no profile picture", zap.String("jid", jid.String()), zap.Error(err))
		return ""
	}
	if pic == nil {
		return ""
	}
	return pic.URL
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(context.Background(), jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

func addressJID(to string) (types.JID, error) {
	if strings.Contains(to, "@") {
		jid, err := types.ParseJID(to)
		if err != nil {
			return types.JID{}, fmt.Errorf("parse JID: %w", err)
		}
		return jid, nil
	}
	if to == "" {
		return types.JID{}, errors.New("empty address")
	}
	return types.NewJID(to, types.DefaultUserServer), nil
}
