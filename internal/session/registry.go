package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/llanen/nl.eneco.toon/internal/providers/toon"
	"github.com/llanen/nl.eneco.toon/pkg/model"
)

// BoundDevice is the registry's view of a per-device sync engine. The
// registry rebinds devices when re-authentication replaces the session
// and suspends them on logout so no stale client keeps making calls.
type BoundDevice interface {
	Binding() model.DeviceBinding
	Availability() model.Availability
	Rebind(ctx context.Context, client *toon.Session, sessionID, configID string) error
	Suspend(reason string)
	ProcessStatusUpdate(payload toon.StatusPayload) error
}

// AgreementHandler is invoked after a completed login for every
// agreement on the account that has no bound device yet, so the host
// can bring new devices online without a restart.
type AgreementHandler func(ctx context.Context, client *toon.Session, sess model.Session, agreement model.Agreement)

// ReauthorizationMessage is the reason devices carry after logout until a
// new login completes.
const ReauthorizationMessage = "re-authorization required"

// pendingLogin is the temporary session shell that exists between the
// authorize redirect and the code exchange.
type pendingLogin struct {
	tempID string
	client *toon.Session
}

// Registry holds the process-wide session and the devices bound to it.
// At most one session exists at any time; two persisted sessions mean
// corrupted state and are reported, never repaired.
type Registry struct {
	store  Store
	opts   toon.Options
	logger *slog.Logger

	mu             sync.Mutex
	client         *toon.Session
	current        model.Session
	active         bool
	pending        *pendingLogin
	devices        map[string]BoundDevice
	onNewAgreement AgreementHandler
}

// NewRegistry creates a registry backed by the given store and restores
// the persisted session if one exists.
func NewRegistry(ctx context.Context, store Store, opts toon.Options, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:   store,
		opts:    opts,
		logger:  logger.With("component", "session_registry"),
		devices: make(map[string]BoundDevice),
	}

	sess, err := r.GetSession(ctx)
	switch err {
	case nil:
		r.client = toon.NewSession(opts, sess.Token)
		r.current = sess
		r.active = true
		r.logger.Info("Restored persisted session", "session_id", sess.ID)
	case ErrSessionNotFound:
		r.logger.Info("No persisted session, login required")
	default:
		return nil, err
	}

	return r, nil
}

// GetSession returns the single persisted session. More than one
// persisted session is an invariant violation and fails the query.
func (r *Registry) GetSession(ctx context.Context) (model.Session, error) {
	sessions, err := r.store.List(ctx)
	if err != nil {
		return model.Session{}, fmt.Errorf("listing sessions: %w", err)
	}
	switch len(sessions) {
	case 0:
		return model.Session{}, ErrSessionNotFound
	case 1:
		return sessions[0], nil
	default:
		return model.Session{}, fmt.Errorf("%w: %d sessions persisted", ErrMultipleSessions, len(sessions))
	}
}

// IsAuthenticated reports whether an active session exists.
func (r *Registry) IsAuthenticated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Client returns the vendor API client of the active session, or nil
// when no session exists.
func (r *Registry) Client() *toon.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// Login starts the authorization code flow. A temporary session shell is
// created and its id doubles as the OAuth2 state parameter. The returned
// URL must be visited by the user; CompleteLogin finishes the flow.
func (r *Registry) Login(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := &pendingLogin{
		tempID: uuid.NewString(),
		client: toon.NewSession(r.opts, model.Token{}),
	}
	r.pending = pending

	r.logger.Info("Login started", "temp_session_id", pending.tempID)
	return pending.client.AuthorizeURL(pending.tempID), nil
}

// CompleteLogin exchanges the authorization code, destroys the temporary
// session and replaces the active session. Every bound device is rebound
// to the new session and re-checked against its agreement.
func (r *Registry) CompleteLogin(ctx context.Context, code string) (model.Session, error) {
	r.mu.Lock()
	pending := r.pending
	r.mu.Unlock()
	if pending == nil {
		return model.Session{}, fmt.Errorf("no login in progress")
	}

	token, err := pending.client.ExchangeCode(ctx, code)
	if err != nil {
		return model.Session{}, err
	}

	sess := model.Session{
		ID:       uuid.NewString(),
		ConfigID: r.opts.ClientID,
		Title:    "Toon",
		Token:    token,
	}

	// Replace whatever was persisted before; the temporary shell was
	// never persisted.
	previous, err := r.store.List(ctx)
	if err != nil {
		return model.Session{}, fmt.Errorf("listing previous sessions: %w", err)
	}
	for _, p := range previous {
		if err := r.store.Delete(ctx, p.ID); err != nil {
			return model.Session{}, fmt.Errorf("deleting previous session: %w", err)
		}
	}
	if err := r.store.Save(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("persisting session: %w", err)
	}

	r.mu.Lock()
	r.client = pending.client
	r.current = sess
	r.active = true
	r.pending = nil
	devices := r.deviceListLocked()
	client := r.client
	r.mu.Unlock()

	r.logger.Info("Login completed", "session_id", sess.ID, "devices", len(devices))
	r.rebindDevices(ctx, client, sess, devices)

	return sess, nil
}

// OnNewAgreement registers the handler invoked for agreements without a
// bound device after a completed login.
func (r *Registry) OnNewAgreement(fn AgreementHandler) {
	r.mu.Lock()
	r.onNewAgreement = fn
	r.mu.Unlock()
}

// rebindDevices points every bound device at the new session, checking
// each binding against the account's current agreements. Agreements
// that have no bound device yet are handed to the new-agreement
// handler.
func (r *Registry) rebindDevices(ctx context.Context, client *toon.Session, sess model.Session, devices []BoundDevice) {
	agreements, err := client.GetAgreements(ctx)
	if err != nil {
		r.logger.Error("Failed to list agreements while rebinding", "error", err)
	}
	known := make(map[string]bool, len(agreements))
	for _, a := range agreements {
		known[a.AgreementID] = true
	}

	bound := make(map[string]bool, len(devices))
	for _, device := range devices {
		binding := device.Binding()
		bound[binding.AgreementID] = true
		if err == nil && !known[binding.AgreementID] {
			r.logger.Warn("Agreement no longer on account", "agreement_id", binding.AgreementID)
			device.Suspend(ReauthorizationMessage)
			continue
		}
		if rebindErr := device.Rebind(ctx, client, sess.ID, sess.ConfigID); rebindErr != nil {
			r.logger.Error("Failed to rebind device", "agreement_id", binding.AgreementID, "error", rebindErr)
		}
	}

	r.mu.Lock()
	onNew := r.onNewAgreement
	r.mu.Unlock()
	if err != nil || onNew == nil {
		return
	}
	for _, a := range agreements {
		if bound[a.AgreementID] {
			continue
		}
		r.logger.Info("New agreement discovered", "agreement_id", a.AgreementID)
		onNew(ctx, client, sess, a)
	}
}

// Logout destroys the active session's client and suspends every bound
// device until a new login completes: devices drop their clients so no
// further API calls can succeed on the dead session. Device bindings
// themselves are kept.
func (r *Registry) Logout(ctx context.Context) error {
	r.mu.Lock()
	current := r.current
	active := r.active
	r.client = nil
	r.current = model.Session{}
	r.active = false
	devices := r.deviceListLocked()
	r.mu.Unlock()

	if active {
		if err := r.store.Delete(ctx, current.ID); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
	}

	for _, device := range devices {
		device.Suspend(ReauthorizationMessage)
	}

	r.logger.Info("Logged out", "devices", len(devices))
	return nil
}

// ResetOAuth2Client rebuilds a device's view of the session, called by
// the host registry when re-authentication replaced the active session.
func (r *Registry) ResetOAuth2Client(ctx context.Context, sessionID, configID string) error {
	r.mu.Lock()
	client := r.client
	current := r.current
	active := r.active
	devices := r.deviceListLocked()
	r.mu.Unlock()

	if !active {
		return ErrSessionNotFound
	}
	if current.ID != sessionID || current.ConfigID != configID {
		return fmt.Errorf("session %s/%s is not active", sessionID, configID)
	}

	for _, device := range devices {
		if err := device.Rebind(ctx, client, sessionID, configID); err != nil {
			return err
		}
	}
	return nil
}

// SaveToken persists refreshed credentials for the active session.
func (r *Registry) SaveToken(ctx context.Context, token model.Token) error {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	r.current.Token = token
	sess := r.current
	r.mu.Unlock()

	return r.store.Save(ctx, sess)
}

// RegisterDevice adds a device keyed by its display common name.
func (r *Registry) RegisterDevice(device BoundDevice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[device.Binding().DisplayCommonName] = device
}

// UnregisterDevice removes a device by its display common name.
func (r *Registry) UnregisterDevice(commonName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, commonName)
}

// Devices returns all registered devices.
func (r *Registry) Devices() []BoundDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deviceListLocked()
}

// DevicesByCommonName returns the devices bound to the given display,
// used by the webhook receiver to route incoming payloads.
func (r *Registry) DevicesByCommonName(commonName string) []BoundDevice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []BoundDevice
	if device, ok := r.devices[commonName]; ok {
		matched = append(matched, device)
	}
	return matched
}

func (r *Registry) deviceListLocked() []BoundDevice {
	devices := make([]BoundDevice, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d)
	}
	return devices
}
