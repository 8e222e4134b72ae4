package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/llanen/nl.eneco.toon/internal/providers/toon"
	"github.com/llanen/nl.eneco.toon/pkg/model"
	"github.com/llanen/nl.eneco.toon/pkg/temperature"
)

const (
	defaultRenewalInterval = 15 * time.Minute
	defaultRefreshInterval = 6 * time.Hour
	defaultDebounceWindow  = 500 * time.Millisecond

	reasonConnecting = "connecting"
	reasonOffline    = "offline"
)

// InvalidTemperatureError rejects a malformed setpoint before any
// network call is made.
type InvalidTemperatureError struct {
	Value float64
}

func (e *InvalidTemperatureError) Error() string {
	return fmt.Sprintf("invalid target temperature: %v", e.Value)
}

// ErrUnknownState rejects a temperature state name outside the fixed
// state table.
var ErrUnknownState = errors.New("unknown temperature state")

// ErrSuspended rejects commands on a device whose session was destroyed
// and not yet replaced.
var ErrSuspended = errors.New("device suspended pending re-authorization")

// DeviceSyncOptions configures a DeviceSync.
type DeviceSyncOptions struct {
	Client  *toon.Session
	Binding model.DeviceBinding
	Sink    model.CapabilitySink
	Logger  *slog.Logger

	// PollInterval of 0 disables the polling fallback.
	PollInterval    time.Duration
	RenewalInterval time.Duration
	RefreshInterval time.Duration
	DebounceWindow  time.Duration

	// OnTokenRefresh is called with the new token pair after a scheduled
	// refresh so the session store stays current.
	OnTokenRefresh func(model.Token)

	// Metrics counts capability sink writes. Optional.
	Metrics *MetricsCollector
}

// DeviceSync is the per-device engine: it owns the availability state
// machine, the webhook renewal timer, the status ingestion path and the
// outbound command methods for one bound agreement.
type DeviceSync struct {
	logger       *slog.Logger
	sink         model.CapabilitySink
	metrics      *MetricsCollector
	availability *AvailabilityTracker

	pollInterval    time.Duration
	renewalInterval time.Duration
	refreshInterval time.Duration
	onTokenRefresh  func(model.Token)

	tempDebounce  *Debouncer
	stateDebounce *Debouncer

	mu             sync.Mutex
	client         *toon.Session
	binding        model.DeviceBinding
	thermostatInfo *toon.ThermostatInfo
	powerUsage     *toon.PowerUsage
	gasUsage       *toon.GasUsage
	stateTemps     map[int]float64
	warning        string
	renewalTimer   *time.Timer

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDeviceSync creates a device engine bound to one agreement. It
// starts unavailable ("connecting") until Start completes the first
// status fetch.
func NewDeviceSync(opts DeviceSyncOptions) *DeviceSync {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "device_sync", "common_name", opts.Binding.DisplayCommonName)

	renewalInterval := opts.RenewalInterval
	if renewalInterval == 0 {
		renewalInterval = defaultRenewalInterval
	}
	refreshInterval := opts.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = defaultRefreshInterval
	}
	debounceWindow := opts.DebounceWindow
	if debounceWindow == 0 {
		debounceWindow = defaultDebounceWindow
	}

	return &DeviceSync{
		logger:          logger,
		sink:            opts.Sink,
		metrics:         opts.Metrics,
		availability:    NewAvailabilityTracker(reasonConnecting, logger),
		pollInterval:    opts.PollInterval,
		renewalInterval: renewalInterval,
		refreshInterval: refreshInterval,
		onTokenRefresh:  opts.OnTokenRefresh,
		tempDebounce:    NewDebouncer(debounceWindow),
		stateDebounce:   NewDebouncer(debounceWindow),
		client:          opts.Client,
		binding:         opts.Binding,
		stateTemps:      make(map[int]float64),
	}
}

// Binding returns the device's current binding.
func (d *DeviceSync) Binding() model.DeviceBinding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binding
}

// Availability returns a snapshot of the availability state machine.
func (d *DeviceSync) Availability() model.Availability {
	return d.availability.State()
}

// Warning returns the current non-fatal device warning, if any.
func (d *DeviceSync) Warning() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.warning
}

// Start brings the device online: tokens are refreshed eagerly to cover
// extended downtime, then the initial status fetch and the webhook
// subscription run concurrently so a subscription failure cannot delay
// polled data. Background loops for token refresh, subscription renewal
// and the polling fallback are started afterwards.
func (d *DeviceSync) Start(ctx context.Context) {
	d.logger.Info("Starting device sync")

	runCtx, cancel := context.WithCancel(context.Background())
	d.mu.Lock()
	d.runCtx = runCtx
	d.cancel = cancel
	d.mu.Unlock()

	if _, err := d.currentClient().RefreshAccessTokens(ctx); err != nil {
		d.logger.Error("Initial token refresh failed", "error", err)
	} else if d.onTokenRefresh != nil {
		d.onTokenRefresh(d.currentClient().Token())
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.GetStatusUpdate(ctx)
	}()
	go func() {
		defer wg.Done()
		d.registerWebhookSubscription(ctx)
	}()
	wg.Wait()

	d.availability.MarkAvailable()

	d.scheduleRenewal(d.renewalInterval)
	d.wg.Add(1)
	go d.refreshLoop(runCtx)
	if d.pollInterval > 0 {
		d.wg.Add(1)
		go d.pollLoop(runCtx)
	}
}

// Stop tears the device down: timers are cancelled, pending debounced
// commands are released and the webhook subscription is unregistered
// best-effort.
func (d *DeviceSync) Stop(ctx context.Context) {
	d.logger.Info("Stopping device sync")

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	if d.renewalTimer != nil {
		d.renewalTimer.Stop()
		d.renewalTimer = nil
	}
	binding := d.binding
	client := d.client
	d.mu.Unlock()

	d.tempDebounce.Stop()
	d.stateDebounce.Stop()
	d.wg.Wait()

	if client != nil {
		if err := client.UnregisterWebhookSubscription(ctx, binding.AgreementID); err != nil {
			d.logger.Warn("Failed to unregister webhook subscription", "error", err)
		}
	}
}

// Rebind points the device at a replacement session after
// re-authentication and restores the webhook subscription and data flow.
func (d *DeviceSync) Rebind(ctx context.Context, client *toon.Session, sessionID, configID string) error {
	d.mu.Lock()
	d.client = client
	d.binding.SessionID = sessionID
	d.binding.ConfigID = configID
	d.mu.Unlock()

	d.logger.Info("Rebound to new session", "session_id", sessionID)

	d.registerWebhookSubscription(ctx)
	d.GetStatusUpdate(ctx)
	return nil
}

// Suspend detaches the device from its session: the held client is
// dropped so background loops and commands stop making API calls, and
// the device flips unavailable immediately, bypassing the failure
// threshold. Rebind attaches a replacement session.
func (d *DeviceSync) Suspend(reason string) {
	d.mu.Lock()
	d.client = nil
	d.mu.Unlock()
	d.availability.ForceUnavailable(reason)
}

func (d *DeviceSync) currentClient() *toon.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client
}

// refreshLoop refreshes the token pair on a fixed interval, independent
// of per-device activity. A failing refresh is logged and retried next
// cycle; it must not cancel other in-flight operations.
func (d *DeviceSync) refreshLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			client := d.currentClient()
			if client == nil {
				continue
			}
			token, err := client.RefreshAccessTokens(ctx)
			if err != nil {
				d.logger.Error("Scheduled token refresh failed", "error", err)
				continue
			}
			if d.onTokenRefresh != nil {
				d.onTokenRefresh(token)
			}
		}
	}
}

// pollLoop is the fallback data path when pushes stop arriving.
func (d *DeviceSync) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.GetStatusUpdate(ctx)
		}
	}
}

// scheduleRenewal (re)arms the webhook renewal timer. A server-provided
// lease supersedes the unconditional interval for a single cycle.
func (d *DeviceSync) scheduleRenewal(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.runCtx == nil || d.runCtx.Err() != nil {
		return
	}
	if d.renewalTimer != nil {
		d.renewalTimer.Stop()
	}
	d.renewalTimer = time.AfterFunc(delay, d.renewSubscription)
}

// renewSubscription re-registers the webhook subscription and reschedules
// itself unconditionally; subscriptions are time-limited server-side and
// renewed proactively regardless of outcome.
func (d *DeviceSync) renewSubscription() {
	d.mu.Lock()
	ctx := d.runCtx
	d.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	d.registerWebhookSubscription(ctx)
	d.scheduleRenewal(d.renewalInterval)
}

// registerWebhookSubscription requests a push subscription. Failure is
// non-fatal: the device degrades to polling and carries a warning until
// the next renewal cycle succeeds.
func (d *DeviceSync) registerWebhookSubscription(ctx context.Context) {
	client := d.currentClient()
	if client == nil {
		return
	}
	binding := d.Binding()
	if err := client.RegisterWebhookSubscription(ctx, binding.AgreementID); err != nil {
		d.logger.Warn("Webhook subscription failed, falling back to polling", "error", err)
		d.setWarning("webhook subscription failed")
		return
	}
	d.setWarning("")
}

func (d *DeviceSync) setWarning(warning string) {
	d.mu.Lock()
	d.warning = warning
	d.mu.Unlock()
}

// GetStatusUpdate polls a full status snapshot and feeds it through the
// same ingestion path as a push event.
func (d *DeviceSync) GetStatusUpdate(ctx context.Context) {
	client := d.currentClient()
	if client == nil {
		return
	}
	binding := d.Binding()
	status, err := client.GetStatus(ctx, binding.AgreementID)
	if err != nil {
		d.logger.Error("Failed to retrieve status update", "error", err)
		if toon.IsCommunicationError(err) {
			d.availability.MarkUnavailable(reasonOffline)
		}
		return
	}

	payload := toon.StatusPayload{
		CommonName:    binding.DisplayCommonName,
		UpdateDataSet: status.DataSet(),
	}
	if err := d.ProcessStatusUpdate(payload); err != nil {
		d.logger.Error("Failed to process status update", "error", err)
	}
}

// ProcessStatusUpdate is the single ingestion point for push and poll
// data. Payloads for other displays are rejected, a server lease
// reschedules the renewal timer, the state temperature table is merged
// and each present sub-section independently produces capability values.
func (d *DeviceSync) ProcessStatusUpdate(payload toon.StatusPayload) error {
	binding := d.Binding()
	if payload.CommonName != "" && payload.CommonName != binding.DisplayCommonName {
		d.logger.Debug("Ignoring status update for other display", "payload_common_name", payload.CommonName)
		return nil
	}

	if payload.TimeToLiveSeconds > 0 {
		d.scheduleRenewal(time.Duration(payload.TimeToLiveSeconds) * time.Second)
	}

	data := payload.UpdateDataSet

	var values []model.CapabilityValue
	d.mu.Lock()
	if data.ThermostatStates != nil {
		for _, st := range data.ThermostatStates.State {
			d.stateTemps[st.ID] = st.TempValue
		}
	}
	if data.PowerUsage != nil {
		d.powerUsage = data.PowerUsage
	}
	if data.GasUsage != nil {
		d.gasUsage = data.GasUsage
	}
	if data.ThermostatInfo != nil {
		d.thermostatInfo = data.ThermostatInfo
	}
	d.mu.Unlock()

	values = append(values, ExtractPowerUsage(data.PowerUsage)...)
	values = append(values, ExtractGasUsage(data.GasUsage)...)
	values = append(values, ExtractThermostatInfo(data.ThermostatInfo)...)

	d.applyCapabilities(values)
	d.availability.MarkAvailable()
	return nil
}

// applyCapabilities writes values to the capability sink. A failing
// write is logged, never escalated.
func (d *DeviceSync) applyCapabilities(values []model.CapabilityValue) {
	if d.sink == nil {
		return
	}
	binding := d.Binding()
	for _, v := range values {
		if d.metrics != nil {
			d.metrics.RecordSinkWrite()
		}
		if err := d.sink.SetCapabilityValue(binding.DisplayCommonName, v.Name, v.Value); err != nil {
			if d.metrics != nil {
				d.metrics.RecordSinkError()
			}
			d.logger.Error("Failed to set capability value", "capability", v.Name, "error", err)
		}
	}
}

// writeThermostat pushes a full thermostat object to the vendor. The
// outcome feeds the availability state machine like any other
// authenticated call: success proves the display reachable and resets
// the failure counter, a communication error counts toward flipping the
// device unavailable.
func (d *DeviceSync) writeThermostat(ctx context.Context, info toon.ThermostatInfo) error {
	client := d.currentClient()
	if client == nil {
		return ErrSuspended
	}

	binding := d.Binding()
	if err := client.UpdateThermostat(ctx, binding.AgreementID, info); err != nil {
		if toon.IsCommunicationError(err) {
			d.availability.MarkUnavailable(reasonOffline)
		}
		return err
	}

	d.availability.MarkAvailable()
	return nil
}

// OnTargetTemperature handles an inbound target temperature command.
// Rapid successive calls are coalesced; only the final value is written.
func (d *DeviceSync) OnTargetTemperature(ctx context.Context, temp float64) error {
	snapped := temperature.SnapToHalf(temp)
	return d.tempDebounce.Do(func() error {
		return d.SetTargetTemperature(ctx, snapped)
	})
}

// OnTemperatureState handles an inbound temperature state command.
// Rapid successive calls are coalesced; only the final state is written.
func (d *DeviceSync) OnTemperatureState(ctx context.Context, state string, resumeProgram bool) error {
	return d.stateDebounce.Do(func() error {
		return d.UpdateState(ctx, state, resumeProgram)
	})
}

// SetTargetTemperature writes a new setpoint. The write overlays the
// setpoint onto the last known thermostat snapshot with the program
// overridden and no active state; on success the local capabilities are
// updated optimistically without waiting for a confirming push.
func (d *DeviceSync) SetTargetTemperature(ctx context.Context, temp float64) error {
	if temp == 0 || math.IsNaN(temp) || math.IsInf(temp, 0) {
		return &InvalidTemperatureError{Value: temp}
	}

	setpoint := float64(temperature.ToHundredths(temp))
	programState := ProgramOverride
	activeState := StateNone

	info := d.snapshotThermostatInfo()
	info.CurrentSetpoint = &setpoint
	info.ProgramState = &programState
	info.ActiveState = &activeState

	d.logger.Info("Setting target temperature", "temperature", temp)
	if err := d.writeThermostat(ctx, info); err != nil {
		d.logger.Error("Failed to set target temperature", "temperature", temp, "error", err)
		return err
	}

	d.applyCapabilities([]model.CapabilityValue{
		{Name: model.CapabilityTargetTemperature, Value: temp},
		{Name: model.CapabilityTemperatureState, Value: "none"},
	})
	return nil
}

// UpdateState switches the thermostat's operating state, optionally
// resuming the program afterwards. When the resulting temperature for
// the state is known it is applied optimistically to the local target
// temperature capability.
func (d *DeviceSync) UpdateState(ctx context.Context, state string, resumeProgram bool) error {
	stateID, ok := StateID(state)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownState, state)
	}

	programState := ProgramOff
	if resumeProgram {
		programState = ProgramOverride
	}

	info := d.snapshotThermostatInfo()
	info.ActiveState = &stateID
	info.ProgramState = &programState

	d.logger.Info("Setting temperature state", "state", state, "state_id", stateID)
	if err := d.writeThermostat(ctx, info); err != nil {
		d.logger.Error("Failed to set temperature state", "state", state, "error", err)
		return err
	}

	values := []model.CapabilityValue{
		{Name: model.CapabilityTemperatureState, Value: state},
	}
	if predicted, ok := d.predictedTemperature(stateID); ok {
		values = append(values, model.CapabilityValue{Name: model.CapabilityTargetTemperature, Value: predicted})
	}
	d.applyCapabilities(values)
	return nil
}

// EnableProgram turns the temperature program on. No optimistic
// capability update, no temperature is implied.
func (d *DeviceSync) EnableProgram(ctx context.Context) error {
	return d.setProgramState(ctx, ProgramOn)
}

// DisableProgram turns the temperature program off.
func (d *DeviceSync) DisableProgram(ctx context.Context) error {
	return d.setProgramState(ctx, ProgramOff)
}

func (d *DeviceSync) setProgramState(ctx context.Context, programState int) error {
	info := d.snapshotThermostatInfo()
	info.ProgramState = &programState

	d.logger.Info("Setting program state", "program_state", programState)
	if err := d.writeThermostat(ctx, info); err != nil {
		d.logger.Error("Failed to set program state", "program_state", programState, "error", err)
		return err
	}
	return nil
}

// snapshotThermostatInfo returns a copy of the last known thermostat
// snapshot. The vendor requires a full object on write, so every
// mutation overlays changed fields onto this copy.
func (d *DeviceSync) snapshotThermostatInfo() toon.ThermostatInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.thermostatInfo == nil {
		return toon.ThermostatInfo{}
	}
	return *d.thermostatInfo
}

// predictedTemperature returns the last reported setpoint for a state in
// one-decimal degrees.
func (d *DeviceSync) predictedTemperature(stateID int) (float64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	raw, ok := d.stateTemps[stateID]
	if !ok {
		return 0, false
	}
	return temperature.FromHundredths(raw), true
}
