package wa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/store"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// Options configures an Adapter.
type Options struct {
	DeviceDBPath string
	MediaDir     string
	DeviceName   string // shown in the phone's linked devices list
}

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	bus       *bus.Bus
	logger    *zap.Logger
	mediaDir  string
}

// NewAdapter opens the device store at opts.DeviceDBPath and creates a
// client for its first device. Nothing connects until Connect.
func NewAdapter(ctx context.Context, opts Options, b *bus.Bus, logger *zap.Logger) (*Adapter, error) {
	name := opts.DeviceName
	if name == "" {
		name = "wamcp"
	}
	wastore.SetOSInfo(name, [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", opts.DeviceDBPath),
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
		bus:       b,
		logger:    logger,
		mediaDir:  opts.MediaDir,
	}, nil
}

const logoutWait = 20 * time.Second

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client != nil && a.client.Store.ID != nil
}

// IsConnected reports whether the websocket is up.
func (a *Adapter) IsConnected() bool {
	return a.client != nil && a.client.IsConnected()
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

// Logout unlinks the device on the phone and deletes the local
// credentials. It connects first if needed.
func (a *Adapter) Logout(ctx context.Context) error {
	if !a.IsConnected() {
		if err := a.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
	}
	if !a.client.WaitForConnection(logoutWait) {
		return errors.New("timed out waiting for WhatsApp to accept the session")
	}
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// GetContacts returns every contact known to the device store.
func (a *Adapter) GetContacts(ctx context.Context) []store.Contact {
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	contacts := make([]store.Contact, 0, len(allContacts))
	for jid, info := range allContacts {
		name := info.FullName
		if name == "" {
			name = info.FirstName
		}
		contacts = append(contacts, store.Contact{
			JID:      jid.ToNonAD().String(),
			Name:     name,
			PushName: info.PushName,
		})
	}
	return contacts
}

// GroupNames returns the subject of every group the account is in, keyed
// by group JID.
func (a *Adapter) GroupNames(ctx context.Context) (map[string]string, error) {
	groups, err := a.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("get joined groups: %w", err)
	}
	names := make(map[string]string, len(groups))
	for _, g := range groups {
		if g.Name != "" {
			names[g.JID.String()] = g.Name
		}
	}
	return names, nil
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client == nil || a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// GetLIDMappings returns the LID of every phone number contact the device
// store can resolve.
func (a *Adapter) GetLIDMappings(ctx context.Context) []store.LIDMapping {
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return nil
	}

	// There is no bulk LID listing, so walk the contacts.
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to list contacts for LID mapping", zap.Error(err))
		return nil
	}

	var mappings []store.LIDMapping
	for jid := range allContacts {
		pn := jid.ToNonAD()
		if pn.Server != types.DefaultUserServer {
			continue
		}
		lid, err := a.client.Store.LIDs.GetLIDForPN(ctx, pn)
		if err == nil && !lid.IsEmpty() {
			mappings = append(mappings, store.LIDMapping{LID: lid.User, PN: pn.User})
		}
	}
	return mappings
}

// ResolveLID resolves a LID JID to its phone number JID using the device store mapping.
// Returns the original JID if it's not a LID or if resolution fails.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
