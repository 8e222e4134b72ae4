package toon

import "github.com/llanen/nl.eneco.toon/pkg/model"

// tokenResponse is the vendor token endpoint response for both the
// authorization_code and refresh_token grants.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int    `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// agreementResponse is one entry of the GET /agreements response.
type agreementResponse struct {
	AgreementID            string `json:"agreementId"`
	AgreementIDChecksum    string `json:"agreementIdChecksum"`
	DisplayCommonName      string `json:"displayCommonName"`
	DisplayHardwareVersion string `json:"displayHardwareVersion"`
	DisplaySoftwareVersion string `json:"displaySoftwareVersion"`
	Street                 string `json:"street"`
	HouseNumber            string `json:"houseNumber"`
	PostalCode             string `json:"postalCode"`
	City                   string `json:"city"`
	HeatingType            string `json:"heatingType"`
}

func (a agreementResponse) toModel() model.Agreement {
	return model.Agreement{
		AgreementID:       a.AgreementID,
		DisplayCommonName: a.DisplayCommonName,
		Street:            a.Street,
		HouseNumber:       a.HouseNumber,
		PostalCode:        a.PostalCode,
		City:              a.City,
	}
}

// ThermostatInfo mirrors the thermostatInfo block of the status document.
// Fields the integration reads are pointers so a partial document can be
// told apart from zero values; the rest is passed through untouched when
// writing a modified copy back.
type ThermostatInfo struct {
	CurrentDisplayTemp     *float64 `json:"currentDisplayTemp,omitempty"`
	CurrentSetpoint        *float64 `json:"currentSetpoint,omitempty"`
	ProgramState           *int     `json:"programState,omitempty"`
	ActiveState            *int     `json:"activeState,omitempty"`
	NextProgram            *int     `json:"nextProgram,omitempty"`
	NextState              *int     `json:"nextState,omitempty"`
	NextTime               *int64   `json:"nextTime,omitempty"`
	NextSetpoint           *int     `json:"nextSetpoint,omitempty"`
	RandomConfigID         *int     `json:"randomConfigId,omitempty"`
	ErrorFound             *int     `json:"errorFound,omitempty"`
	BoilerModuleConnected  *int     `json:"boilerModuleConnected,omitempty"`
	BurnerInfo             *string  `json:"burnerInfo,omitempty"`
	OTCommError            *string  `json:"otCommError,omitempty"`
	CurrentModulationLevel *int     `json:"currentModulationLevel,omitempty"`
}

// PowerUsage mirrors the powerUsage block of the status document.
type PowerUsage struct {
	Value           *float64 `json:"value,omitempty"`
	DayUsage        *float64 `json:"dayUsage,omitempty"`
	DayLowUsage     *float64 `json:"dayLowUsage,omitempty"`
	AvgValue        *float64 `json:"avgValue,omitempty"`
	MeterReading    *float64 `json:"meterReading,omitempty"`
	MeterReadingLow *float64 `json:"meterReadingLow,omitempty"`
	DayCost         *float64 `json:"dayCost,omitempty"`
	IsSmart         *int     `json:"isSmart,omitempty"`
}

// GasUsage mirrors the gasUsage block of the status document.
type GasUsage struct {
	Value        *float64 `json:"value,omitempty"`
	DayUsage     *float64 `json:"dayUsage,omitempty"`
	AvgDayValue  *float64 `json:"avgDayValue,omitempty"`
	AvgValue     *float64 `json:"avgValue,omitempty"`
	MeterReading *float64 `json:"meterReading,omitempty"`
	DayCost      *float64 `json:"dayCost,omitempty"`
	IsSmart      *int     `json:"isSmart,omitempty"`
}

// ThermostatState is one entry of the thermostatStates block, mapping a
// program state id to its configured setpoint.
type ThermostatState struct {
	ID        int     `json:"id"`
	TempValue float64 `json:"tempValue"`
	Dhw       *int    `json:"dhw,omitempty"`
}

// ThermostatStates wraps the state list of the status document.
type ThermostatStates struct {
	State []ThermostatState `json:"state"`
}

// UpdateDataSet is the partial status document carried by both the full
// status response and webhook notifications. Any block may be absent.
type UpdateDataSet struct {
	ThermostatInfo   *ThermostatInfo   `json:"thermostatInfo,omitempty"`
	ThermostatStates *ThermostatStates `json:"thermostatStates,omitempty"`
	PowerUsage       *PowerUsage       `json:"powerUsage,omitempty"`
	GasUsage         *GasUsage         `json:"gasUsage,omitempty"`
}

// StatusResponse is the GET /{agreementId}/status response.
type StatusResponse struct {
	ThermostatInfo   *ThermostatInfo   `json:"thermostatInfo,omitempty"`
	ThermostatStates *ThermostatStates `json:"thermostatStates,omitempty"`
	PowerUsage       *PowerUsage       `json:"powerUsage,omitempty"`
	GasUsage         *GasUsage         `json:"gasUsage,omitempty"`
}

// DataSet returns the status blocks as an update set so status polls and
// webhook pushes feed the same processing path.
func (s *StatusResponse) DataSet() UpdateDataSet {
	return UpdateDataSet{
		ThermostatInfo:   s.ThermostatInfo,
		ThermostatStates: s.ThermostatStates,
		PowerUsage:       s.PowerUsage,
		GasUsage:         s.GasUsage,
	}
}

// StatusPayload is the body of an incoming webhook notification.
type StatusPayload struct {
	CommonName        string        `json:"commonName"`
	TimeToLiveSeconds int           `json:"timeToLiveSeconds"`
	UpdateDataSet     UpdateDataSet `json:"updateDataSet"`
}

// WebhookSubscription is one entry of the GET /{agreementId}/webhooks
// response and the body of the registration POST.
type WebhookSubscription struct {
	ApplicationID     string   `json:"applicationId"`
	CallbackURL       string   `json:"callbackUrl"`
	SubscribedActions []string `json:"subscribedActions"`
}

// apiErrorBody is the error envelope some vendor endpoints return.
type apiErrorBody struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}
