package model

import (
	"fmt"
	"strings"
	"time"
)

// Capability names written to the host platform's capability sink.
const (
	CapabilityMeasurePower       = "measure_power"
	CapabilityMeterPower         = "meter_power"
	CapabilityMeterGas           = "meter_gas"
	CapabilityMeasureTemperature = "measure_temperature"
	CapabilityTargetTemperature  = "target_temperature"
	CapabilityTemperatureState   = "temperature_state"
	CapabilityHolidayActive      = "holiday_active"
)

// CapabilityValue is a single named value destined for the capability sink.
type CapabilityValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Token holds an OAuth2 token pair and its expiry.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
}

// Expired reports whether the access token is expired or about to expire.
// A small slack window avoids using a token that dies mid-request.
func (t Token) Expired() bool {
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().After(t.Expiry.Add(-5 * time.Minute))
}

// Session is the OAuth2 credential/session identity for one vendor account.
// At most one Session exists process-wide at any time; SessionRegistry
// enforces that invariant.
type Session struct {
	ID       string `json:"id"`
	ConfigID string `json:"config_id"`
	Title    string `json:"title"`
	Token    Token  `json:"token"`
}

// Agreement is the vendor's term for a single physical thermostat
// installation tied to an account. Immutable once fetched.
type Agreement struct {
	AgreementID       string `json:"agreementId"`
	DisplayCommonName string `json:"displayCommonName"`
	Street            string `json:"street"`
	HouseNumber       string `json:"houseNumber"`
	PostalCode        string `json:"postalCode"`
	City              string `json:"city"`
}

// FormatName renders the user-facing device name for pairing. With a single
// agreement on the account the plain product name suffices; with several the
// address disambiguates them.
func (a Agreement) FormatName(multiple bool) string {
	if !multiple {
		return "Toon®"
	}
	city := a.City
	if len(city) > 1 {
		city = city[:1] + strings.ToLower(city[1:])
	}
	return fmt.Sprintf("Toon®: %s %s, %s %s", a.Street, a.HouseNumber, a.PostalCode, city)
}

// DeviceBinding associates one local device instance with one Agreement and
// one Session. It is created when a device is added and mutated only when a
// session is replaced after re-authentication.
type DeviceBinding struct {
	AgreementID       string `json:"agreement_id"`
	DisplayCommonName string `json:"display_common_name"`
	SessionID         string `json:"session_id"`
	ConfigID          string `json:"config_id"`
}

// Availability is a snapshot of a device's availability state machine.
type Availability struct {
	Available           bool   `json:"available"`
	Reason              string `json:"reason,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}
