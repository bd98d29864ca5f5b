package vitalink

import (
	"encoding/binary"
	"time"

	"github.com/JPFrancoia/openScale/pkg/scale"
)

// Opcodes of the vendor protocol (byte 0 of every frame)
const (
	opWeight           = 0x10 // in: live / stable weight + resistances
	opCalibration      = 0x12 // in: scale factor / calibration
	opUnitConfig       = 0x13 // out: unit configuration
	opConfigAck        = 0x14 // in: configuration acknowledgment
	opTimeSync         = 0x20 // out: time sync
	opHandshakeTrigger = 0x21 // in: secondary handshake trigger
	opStoredDataQuery  = 0x22 // out: stored data query
	opStoredData       = 0x23 // in: stored data, informational
	opHandshakeReply   = 0xA0 // out: handshake response (sent twice)
	opHandshakeAck     = 0xA1 // in: informational
	opStatusNotice     = 0xA3 // in: informational
)

// Frame geometry. Frames start with opcode and declared length; the declared
// length is advisory only and never trusted for indexing. Weight frames come
// in two mutually exclusive layouts distinguished by where the stable flag
// byte falls
const (
	minFrameLen = 3
	offToken    = 2

	offWeight = 3

	lenLayoutA = 10
	offAStable = 5
	offARes1   = 6
	offARes2   = 8

	lenLayoutB = 11
	offBRes1   = 5
	offBRes2   = 7
	offBStable = 9

	layoutBStableMax = 2

	offCalibDivisor     = 5
	calibFlagHundredths = 0x01
)

// Weight scaling divisors revealed by the calibration frame. The default is
// assumed until the device reports otherwise; the alternate value is typical
// for layout B devices
const (
	divisorDefault = 100.0
	divisorAlt     = 10.0
)

// Bounds of the weight plausibility check applied after scaling
const (
	minPlausibleKg = 5.0
	maxPlausibleKg = 250.0
)

// Parameters of the piecewise linear mapping from the first resistance
// reading to the impedance scalar consumed by the composition estimator
const (
	resistanceThreshold = 410
	impedanceFloor      = 3.0
	impedanceSlope      = 0.3
	impedanceOffset     = 400
)

// Unit selector bytes accepted by the unit configuration frame
const (
	unitSelectorKg = 0x01
	unitSelectorLb = 0x02
	unitSelectorSt = 0x04
)

// wireSet denotes one of the two known GATT characteristic sets a device
// may expose; alt marks the set typically paired with layout B
type wireSet struct {
	service string
	notify  string
	write   string
	alt     bool
}

var (
	primaryWireSet = wireSet{service: "fff0", notify: "fff1", write: "fff2"}
	altWireSet     = wireSet{service: "ffe0", notify: "ffe1", write: "ffe2", alt: true}
)

// protocolEpoch is the reference point of the device wall clock; time sync
// frames carry seconds elapsed since this instant, little-endian
var protocolEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

////////////////////////////////////////////////////////////////////////////////

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}

	return sum
}

func appendChecksum(frame []byte) []byte {
	return append(frame, checksum(frame))
}

func verifyTrailingChecksum(frame []byte) bool {
	if len(frame) < 2 {
		return false
	}

	return checksum(frame[:len(frame)-1]) == frame[len(frame)-1]
}

func buildUnitConfig(token byte, unit scale.Unit) []byte {
	return appendChecksum([]byte{opUnitConfig, 0x09, token, unitSelector(unit), 0x10, 0x00, 0x00, 0x00})
}

func buildTimeSync(token byte, t time.Time, long bool) []byte {
	frame := []byte{opTimeSync, 0x08, token, 0x00, 0x00, 0x00, 0x00}
	binary.LittleEndian.PutUint32(frame[3:], epochSeconds(t))
	if long {
		frame[1] = 0x0A
		frame = append(frame, 0x00, 0x00)
	}

	return appendChecksum(frame)
}

func buildHandshakeReply(token byte, seq byte) []byte {
	return appendChecksum([]byte{opHandshakeReply, 0x05, token, seq})
}

func buildStoredDataQuery(token byte) []byte {
	return appendChecksum([]byte{opStoredDataQuery, 0x05, token, 0x00})
}

func unitSelector(unit scale.Unit) byte {
	switch unit {
	case scale.UnitLb:
		return unitSelectorLb
	case scale.UnitSt:
		return unitSelectorSt
	}

	return unitSelectorKg
}

func epochSeconds(t time.Time) uint32 {
	if t.Before(protocolEpoch) {
		return 0
	}

	return uint32(t.Sub(protocolEpoch) / time.Second)
}

func impedanceOf(resistance uint16) float64 {
	if resistance < resistanceThreshold {
		return impedanceFloor
	}

	return impedanceSlope * float64(resistance-impedanceOffset)
}
