package scale

import (
	"math"
	"testing"
)

func TestParseUnit(t *testing.T) {
	var tests = []struct {
		in      string
		want    Unit
		wantErr bool
	}{
		{"kg", UnitKg, false},
		{"KG", UnitKg, false},
		{"lb", UnitLb, false},
		{"lbs", UnitLb, false},
		{"st", UnitSt, false},
		{"oz", UnitUnknown, true},
		{"", UnitUnknown, true},
	}

	for _, tt := range tests {
		unit, err := ParseUnit(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseUnit(%q): unexpected error state: %v", tt.in, err)
		}
		if unit != tt.want {
			t.Fatalf("ParseUnit(%q): got %s, want %s", tt.in, unit, tt.want)
		}
	}
}

func TestUnitConversion(t *testing.T) {
	if got := UnitKg.FromKg(80); got != 80 {
		t.Fatalf("kg conversion should be the identity, got %f", got)
	}
	if got := UnitLb.FromKg(80); math.Abs(got-176.37) > 0.01 {
		t.Fatalf("unexpected lb conversion: got %f", got)
	}
	if got := UnitSt.FromKg(80); math.Abs(got-12.598) > 0.01 {
		t.Fatalf("unexpected st conversion: got %f", got)
	}
}

func TestStateString(t *testing.T) {
	var tests = []struct {
		state State
		want  string
	}{
		{StateScanning, "scanning"},
		{StateConnected, "connected"},
		{StateDisconnected, "disconnected"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Fatalf("unexpected state string: got %s, want %s", got, tt.want)
		}
	}
}
