package vitalink

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/JPFrancoia/openScale/pkg/scale"
)

func TestChecksum(t *testing.T) {
	var tests = []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0x00},
		{"simple", []byte{0x01, 0x02, 0x03}, 0x06},
		{"overflow", []byte{0xFF, 0x01}, 0x00},
		{"wraparound", []byte{0x80, 0x81}, 0x01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checksum(tt.data); got != tt.want {
				t.Fatalf("unexpected checksum: got 0x%02x, want 0x%02x", got, tt.want)
			}
		})
	}
}

func TestOutboundFrameShape(t *testing.T) {
	frames := [][]byte{
		buildUnitConfig(0x5A, scale.UnitKg),
		buildTimeSync(0x5A, time.Now(), false),
		buildTimeSync(0x5A, time.Now(), true),
		buildHandshakeReply(0x5A, 0x01),
		buildHandshakeReply(0x5A, 0x02),
		buildStoredDataQuery(0x5A),
	}

	for _, frame := range frames {
		if !verifyTrailingChecksum(frame) {
			t.Fatalf("invalid trailing checksum on frame % x", frame)
		}
		if int(frame[1]) != len(frame) {
			t.Fatalf("declared length %d does not match frame length %d (% x)", frame[1], len(frame), frame)
		}
		if frame[offToken] != 0x5A {
			t.Fatalf("frame does not echo protocol-type token: % x", frame)
		}
	}
}

func TestUnitConfigFrame(t *testing.T) {
	want := []byte{0x13, 0x09, 0x15, 0x02, 0x10, 0x00, 0x00, 0x00, 0x43}
	if frame := buildUnitConfig(0x15, scale.UnitLb); !bytes.Equal(frame, want) {
		t.Fatalf("unexpected unit configuration frame: got % x, want % x", frame, want)
	}
}

func TestUnitSelector(t *testing.T) {
	var tests = []struct {
		unit scale.Unit
		want byte
	}{
		{scale.UnitKg, unitSelectorKg},
		{scale.UnitLb, unitSelectorLb},
		{scale.UnitSt, unitSelectorSt},
		{scale.UnitUnknown, unitSelectorKg},
		{scale.Unit(""), unitSelectorKg},
	}

	for _, tt := range tests {
		if got := unitSelector(tt.unit); got != tt.want {
			t.Fatalf("unexpected unit selector for %s: got 0x%02x, want 0x%02x", tt.unit, got, tt.want)
		}
	}
}

func TestTimeSyncEncoding(t *testing.T) {
	var tests = []struct {
		name string
		time time.Time
		want []byte
	}{
		{
			name: "one second past epoch",
			time: protocolEpoch.Add(time.Second),
			want: []byte{0x01, 0x00, 0x00, 0x00},
		},
		{
			name: "multi byte little endian",
			time: protocolEpoch.Add(257 * time.Second),
			want: []byte{0x01, 0x01, 0x00, 0x00},
		},
		{
			name: "known date",
			time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			want: []byte{0x00, 0xBD, 0x24, 0x2D},
		},
		{
			name: "before epoch clamps to zero",
			time: time.Date(1999, 12, 31, 23, 0, 0, 0, time.UTC),
			want: []byte{0x00, 0x00, 0x00, 0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := buildTimeSync(0x00, tt.time, false)
			if !bytes.Equal(frame[3:7], tt.want) {
				t.Fatalf("unexpected timestamp payload: got % x, want % x", frame[3:7], tt.want)
			}
		})
	}
}

func TestTimeSyncShapes(t *testing.T) {
	short := buildTimeSync(0x33, protocolEpoch.Add(time.Hour), false)
	long := buildTimeSync(0x33, protocolEpoch.Add(time.Hour), true)

	if len(short) != 8 || short[1] != 0x08 {
		t.Fatalf("unexpected short time sync frame: % x", short)
	}
	if len(long) != 10 || long[1] != 0x0A {
		t.Fatalf("unexpected long time sync frame: % x", long)
	}
	if !bytes.Equal(short[3:7], long[3:7]) {
		t.Fatalf("time sync shapes disagree on timestamp payload: % x vs % x", short[3:7], long[3:7])
	}
	if long[7] != 0x00 || long[8] != 0x00 {
		t.Fatalf("unexpected reserved bytes in long time sync frame: % x", long)
	}
}

func TestImpedanceMapping(t *testing.T) {
	var tests = []struct {
		resistance uint16
		want       float64
	}{
		{0, 3.0},
		{300, 3.0},
		{409, 3.0},
		{410, 3.0},
		{500, 30.0},
		{700, 90.0},
	}

	for _, tt := range tests {
		if got := impedanceOf(tt.resistance); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("unexpected impedance for resistance %d: got %f, want %f", tt.resistance, got, tt.want)
		}
	}
}
