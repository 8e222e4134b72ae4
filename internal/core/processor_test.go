package core

import (
	"testing"

	"github.com/llanen/nl.eneco.toon/internal/providers/toon"
	"github.com/llanen/nl.eneco.toon/pkg/model"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func findCapability(t *testing.T, values []model.CapabilityValue, name string) any {
	t.Helper()
	for _, v := range values {
		if v.Name == name {
			return v.Value
		}
	}
	t.Fatalf("Capability %s not found in %v", name, values)
	return nil
}

func hasCapability(values []model.CapabilityValue, name string) bool {
	for _, v := range values {
		if v.Name == name {
			return true
		}
	}
	return false
}

func TestExtractPowerUsage(t *testing.T) {
	values := ExtractPowerUsage(&toon.PowerUsage{
		Value:       floatPtr(350),
		DayUsage:    floatPtr(5000),
		DayLowUsage: floatPtr(3000),
	})

	if got := findCapability(t, values, model.CapabilityMeasurePower); got != 350.0 {
		t.Errorf("Expected measure_power 350, got %v", got)
	}
	if got := findCapability(t, values, model.CapabilityMeterPower); got != 8.0 {
		t.Errorf("Expected meter_power 8.0, got %v", got)
	}
}

func TestExtractPowerUsage_PartialPayload(t *testing.T) {
	values := ExtractPowerUsage(&toon.PowerUsage{Value: floatPtr(120)})

	if got := findCapability(t, values, model.CapabilityMeasurePower); got != 120.0 {
		t.Errorf("Expected measure_power 120, got %v", got)
	}
	if hasCapability(values, model.CapabilityMeterPower) {
		t.Error("Expected no meter_power without day usage data")
	}
}

func TestExtractPowerUsage_NoLowTariff(t *testing.T) {
	values := ExtractPowerUsage(&toon.PowerUsage{DayUsage: floatPtr(5000)})

	if got := findCapability(t, values, model.CapabilityMeterPower); got != 5.0 {
		t.Errorf("Expected meter_power 5.0, got %v", got)
	}
}

func TestExtractGasUsage(t *testing.T) {
	values := ExtractGasUsage(&toon.GasUsage{DayUsage: floatPtr(1200)})

	if got := findCapability(t, values, model.CapabilityMeterGas); got != 1.2 {
		t.Errorf("Expected meter_gas 1.2, got %v", got)
	}
}

func TestExtractGasUsage_Empty(t *testing.T) {
	if values := ExtractGasUsage(&toon.GasUsage{}); len(values) != 0 {
		t.Errorf("Expected no values for empty payload, got %v", values)
	}
	if values := ExtractGasUsage(nil); values != nil {
		t.Errorf("Expected nil for nil payload, got %v", values)
	}
}

func TestExtractThermostatInfo(t *testing.T) {
	values := ExtractThermostatInfo(&toon.ThermostatInfo{
		CurrentDisplayTemp: floatPtr(2155),
		CurrentSetpoint:    floatPtr(1800),
		ActiveState:        intPtr(StateSleep),
		ProgramState:       intPtr(ProgramOn),
	})

	if got := findCapability(t, values, model.CapabilityMeasureTemperature); got != 21.6 {
		t.Errorf("Expected measure_temperature 21.6, got %v", got)
	}
	if got := findCapability(t, values, model.CapabilityTargetTemperature); got != 18.0 {
		t.Errorf("Expected target_temperature 18.0, got %v", got)
	}
	if got := findCapability(t, values, model.CapabilityTemperatureState); got != "sleep" {
		t.Errorf("Expected temperature_state sleep, got %v", got)
	}
	if got := findCapability(t, values, model.CapabilityHolidayActive); got != false {
		t.Errorf("Expected holiday_active false, got %v", got)
	}
}

func TestExtractThermostatInfo_Holiday(t *testing.T) {
	values := ExtractThermostatInfo(&toon.ThermostatInfo{
		ActiveState:  intPtr(StateHoliday),
		ProgramState: intPtr(ProgramHoliday),
	})

	if got := findCapability(t, values, model.CapabilityTemperatureState); got != "none" {
		t.Errorf("Expected holiday to surface as temperature_state none, got %v", got)
	}
	if got := findCapability(t, values, model.CapabilityHolidayActive); got != true {
		t.Errorf("Expected holiday_active true, got %v", got)
	}
}

func TestExtractThermostatInfo_PartialPayload(t *testing.T) {
	values := ExtractThermostatInfo(&toon.ThermostatInfo{CurrentDisplayTemp: floatPtr(2050)})

	if len(values) != 1 {
		t.Fatalf("Expected 1 value, got %v", values)
	}
	if values[0].Name != model.CapabilityMeasureTemperature || values[0].Value != 20.5 {
		t.Errorf("Unexpected value: %+v", values[0])
	}
}

func TestStateID(t *testing.T) {
	tests := []struct {
		name   string
		wantID int
		wantOK bool
	}{
		{"comfort", StateComfort, true},
		{"home", StateHome, true},
		{"sleep", StateSleep, true},
		{"away", StateAway, true},
		{"none", StateNone, true},
		{"holiday", 0, false},
		{"party", 0, false},
	}

	for _, tt := range tests {
		id, ok := StateID(tt.name)
		if ok != tt.wantOK || (ok && id != tt.wantID) {
			t.Errorf("StateID(%q) = %d, %v, expected %d, %v", tt.name, id, ok, tt.wantID, tt.wantOK)
		}
	}
}

func TestStateName(t *testing.T) {
	tests := []struct {
		id       int
		expected string
	}{
		{StateComfort, "comfort"},
		{StateHome, "home"},
		{StateSleep, "sleep"},
		{StateAway, "away"},
		{StateHoliday, "none"},
		{StateNone, "none"},
		{99, "none"},
	}

	for _, tt := range tests {
		if got := StateName(tt.id); got != tt.expected {
			t.Errorf("StateName(%d) = %q, expected %q", tt.id, got, tt.expected)
		}
	}
}
