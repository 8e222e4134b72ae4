package core

import (
	"log/slog"
	"sync"

	"github.com/llanen/nl.eneco.toon/pkg/model"
)

// unavailableThreshold is the number of consecutive failures tolerated
// before the device is surfaced as unavailable. The cloud/display link
// is flaky; a single failed poll must not flap the device state.
const unavailableThreshold = 3

// AvailabilityTracker is the availability state machine of one device.
type AvailabilityTracker struct {
	mu        sync.Mutex
	available bool
	reason    string
	counter   int
	logger    *slog.Logger
}

// NewAvailabilityTracker starts in the unavailable state with the given
// reason, typically "connecting".
func NewAvailabilityTracker(reason string, logger *slog.Logger) *AvailabilityTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AvailabilityTracker{
		available: false,
		reason:    reason,
		logger:    logger,
	}
}

// MarkUnavailable records one failure. The state only flips to
// unavailable once the consecutive failure count exceeds the threshold.
func (a *AvailabilityTracker) MarkUnavailable(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counter++
	if a.counter <= unavailableThreshold {
		return
	}
	if a.available {
		a.logger.Info("Marking device unavailable", "reason", reason, "consecutive_failures", a.counter)
	}
	a.available = false
	a.reason = reason
}

// MarkAvailable records a success: the failure counter resets and, if
// currently unavailable, the state flips back.
func (a *AvailabilityTracker) MarkAvailable() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counter = 0
	if !a.available {
		a.logger.Info("Marking device available")
		a.available = true
		a.reason = ""
	}
}

// ForceUnavailable flips to unavailable immediately, bypassing the
// failure counter. Used on logout, where waiting out the threshold would
// leave a device pretending to work without credentials.
func (a *AvailabilityTracker) ForceUnavailable(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.counter = unavailableThreshold + 1
	if a.available {
		a.logger.Info("Marking device unavailable", "reason", reason)
	}
	a.available = false
	a.reason = reason
}

// State returns a snapshot of the current availability.
func (a *AvailabilityTracker) State() model.Availability {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.Availability{
		Available:           a.available,
		Reason:              a.reason,
		ConsecutiveFailures: a.counter,
	}
}
