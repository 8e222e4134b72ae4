package model

// CapabilitySink receives named capability writes for a device. It is
// implemented by the host platform's capability storage; failures to persist
// a value are logged by the caller, never escalated.
type CapabilitySink interface {
	// SetCapabilityValue stores a single capability value for a device.
	SetCapabilityValue(deviceID, capability string, value any) error
}
