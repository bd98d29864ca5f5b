package scale

import (
	"fmt"
	"strings"
	"time"
)

// Unit denotes the unit used to display weight values on the scale
type Unit string

const (

	// UnitUnknown denotes an unknown / invalid unit
	UnitUnknown Unit = "--"

	// UnitKg denotes metric units (kilograms)
	UnitKg Unit = "kg"

	// UnitLb denotes imperial units (pounds)
	UnitLb Unit = "lb"

	// UnitSt denotes imperial units (stones)
	UnitSt Unit = "st"
)

// ParseUnit parses a unit from its string representation
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(s) {
	case "kg":
		return UnitKg, nil
	case "lb", "lbs":
		return UnitLb, nil
	case "st":
		return UnitSt, nil
	}

	return UnitUnknown, fmt.Errorf("unknown unit: %s", s)
}

// FromKg converts a weight in kilograms into the unit
func (u Unit) FromKg(kg float64) float64 {
	switch u {
	case UnitLb:
		return kg * 2.2046226218
	case UnitSt:
		return kg * 0.1574730444
	}

	return kg
}

// State denotes a connection state
type State int

const (

	// StateScanning is active while scanning for a bluetooth device
	StateScanning State = iota

	// StateConnected is active while being connected to the scale
	StateConnected

	// StateDisconnected is active after being disconnected from the scale
	StateDisconnected
)

// String returns a human-readable representation of the connection state
func (s State) String() string {
	switch s {
	case StateScanning:
		return "scanning"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}

	return "unknown"
}

// ConnectionStatus denotes the current status of the bluetooth device
type ConnectionStatus struct {
	Error error
	State
}

// Measurement denotes a single body measurement published by a scale. Weight
// and all derived quantities are metric; Unit records the display preference
// that was configured on the device for this session
type Measurement struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	TimeStamp time.Time     `json:"timestamp"`
	Elapsed   time.Duration `json:"elapsed"`
	Unit      Unit          `json:"unit"`
	Weight    float64       `json:"weight_kg"`
	Impedance float64       `json:"impedance"`

	FatPercent    float64 `json:"fat_percent"`
	WaterPercent  float64 `json:"water_percent"`
	MusclePercent float64 `json:"muscle_percent"`
	BoneMassKg    float64 `json:"bone_mass_kg"`
}

// Value provides a method to retrieve the weight value (for interface use)
func (m Measurement) Value() float64 {
	return m.Weight
}

// Measurements denotes a set of measurements (usually part of a weighing history)
type Measurements []Measurement

// UserProfile denotes the person being weighed, as maintained by the host
// application. The profile is consumed read-only by scale handlers
type UserProfile struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	Male             bool    `yaml:"male"`
	Age              int     `yaml:"age"`
	HeightCm         float64 `yaml:"height_cm"`
	Unit             Unit    `yaml:"unit"`
	AssistedWeighing bool    `yaml:"assisted_weighing"`
}

// Prompt denotes a message key for user guidance emitted during a weighing
// session. Keys are stable identifiers, the host application decides how to
// present them
type Prompt string

const (

	// PromptStepOn asks the user to step onto the scale
	PromptStepOn Prompt = "step_on_scale"

	// PromptStepOnAssisted asks the user to step onto the scale holding the
	// person being weighed
	PromptStepOnAssisted Prompt = "step_on_scale_assisted"
)
