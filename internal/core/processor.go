package core

import (
	"github.com/llanen/nl.eneco.toon/internal/providers/toon"
	"github.com/llanen/nl.eneco.toon/pkg/model"
	"github.com/llanen/nl.eneco.toon/pkg/temperature"
)

// Thermostat operating states as reported in the activeState field.
const (
	StateComfort = 0
	StateHome    = 1
	StateSleep   = 2
	StateAway    = 3
	StateHoliday = 4
	StateNone    = -1
)

// Program states as reported in the programState field.
const (
	ProgramOff      = 0
	ProgramOn       = 1
	ProgramOverride = 2
	ProgramHoliday  = 4
)

// temperatureStates maps the user-settable symbolic state names to their
// ids. Holiday is informational only and deliberately absent: it cannot
// be requested, only reported.
var temperatureStates = map[string]int{
	"comfort": StateComfort,
	"home":    StateHome,
	"sleep":   StateSleep,
	"away":    StateAway,
	"none":    StateNone,
}

// StateID resolves a symbolic state name to its id.
func StateID(name string) (int, bool) {
	id, ok := temperatureStates[name]
	return id, ok
}

// StateName maps a reported active state id to the symbolic name
// surfaced through the temperature_state capability. Holiday surfaces as
// "none": it is not a user-settable target, a separate holiday_active
// capability reports it.
func StateName(id int) string {
	switch id {
	case StateComfort:
		return "comfort"
	case StateHome:
		return "home"
	case StateSleep:
		return "sleep"
	case StateAway:
		return "away"
	default:
		return "none"
	}
}

// ExtractPowerUsage derives capability values from a power usage
// reading. Only fields present in the reading produce values.
func ExtractPowerUsage(data *toon.PowerUsage) []model.CapabilityValue {
	if data == nil {
		return nil
	}
	var values []model.CapabilityValue
	if data.Value != nil {
		values = append(values, model.CapabilityValue{Name: model.CapabilityMeasurePower, Value: *data.Value})
	}
	if data.DayUsage != nil {
		dayUsage := *data.DayUsage
		if data.DayLowUsage != nil {
			dayUsage += *data.DayLowUsage
		}
		// Wh -> kWh
		values = append(values, model.CapabilityValue{Name: model.CapabilityMeterPower, Value: dayUsage / 1000})
	}
	return values
}

// ExtractGasUsage derives capability values from a gas usage reading.
func ExtractGasUsage(data *toon.GasUsage) []model.CapabilityValue {
	if data == nil {
		return nil
	}
	var values []model.CapabilityValue
	if data.DayUsage != nil {
		// Wh -> kWh
		values = append(values, model.CapabilityValue{Name: model.CapabilityMeterGas, Value: *data.DayUsage / 1000})
	}
	return values
}

// ExtractThermostatInfo derives capability values from a thermostat
// reading. Temperatures arrive in hundredths of a degree and surface as
// one-decimal degrees.
func ExtractThermostatInfo(data *toon.ThermostatInfo) []model.CapabilityValue {
	if data == nil {
		return nil
	}
	var values []model.CapabilityValue
	if data.CurrentDisplayTemp != nil {
		values = append(values, model.CapabilityValue{
			Name:  model.CapabilityMeasureTemperature,
			Value: temperature.FromHundredths(*data.CurrentDisplayTemp),
		})
	}
	if data.CurrentSetpoint != nil {
		values = append(values, model.CapabilityValue{
			Name:  model.CapabilityTargetTemperature,
			Value: temperature.FromHundredths(*data.CurrentSetpoint),
		})
	}
	if data.ActiveState != nil {
		values = append(values, model.CapabilityValue{
			Name:  model.CapabilityTemperatureState,
			Value: StateName(*data.ActiveState),
		})
	}
	if data.ProgramState != nil {
		values = append(values, model.CapabilityValue{
			Name:  model.CapabilityHolidayActive,
			Value: *data.ProgramState == ProgramHoliday,
		})
	}
	return values
}
