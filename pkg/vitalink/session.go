package vitalink

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/JPFrancoia/openScale/pkg/bodycomp"
	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/google/uuid"
)

// handshakeState denotes the progress of the per-connection handshake. The
// state only ever advances; a disconnect discards the whole session
type handshakeState int

const (
	stateConnected handshakeState = iota
	stateAwaitingCalibration
	stateConfiguring
	stateSteady
)

// String returns a human-readable representation of the handshake state
func (s handshakeState) String() string {
	switch s {
	case stateConnected:
		return "connected"
	case stateAwaitingCalibration:
		return "awaiting_calibration"
	case stateConfiguring:
		return "configuring"
	case stateSteady:
		return "steady"
	}

	return "unknown"
}

// session holds all per-connection protocol state. Exactly one session
// exists per active connection; it is created on connect, mutated only by
// the notification callbacks of that connection and discarded on disconnect.
// No field survives a reconnect
type session struct {
	transport scale.Transport
	logger    scale.Logger

	user *scale.UserProfile
	unit scale.Unit

	// altBias carries the wire-layout hint recorded at discovery time; altSet
	// reflects the characteristic set actually found on the device
	altBias bool
	altSet  bool

	token           byte
	hasToken        bool
	divisor         float64
	calibrationSeen bool
	published       bool
	state           handshakeState

	now     func() time.Time
	elapsed func() time.Duration
	sink    func(m scale.Measurement)
}

func newSession(t scale.Transport, logger scale.Logger) *session {
	return &session{
		transport: t,
		logger:    logger,
		unit:      scale.UnitKg,
		divisor:   divisorDefault,
		state:     stateConnected,
		now:       time.Now,
		elapsed:   func() time.Duration { return 0 },
		sink:      func(m scale.Measurement) {},
	}
}

// start subscribes to the notification characteristics of all wire sets
// present on the device and records which set drives outbound writes
func (s *session) start() error {

	present := make([]wireSet, 0, 2)
	for _, set := range []wireSet{primaryWireSet, altWireSet} {
		if s.transport.HasCharacteristic(set.service, set.notify) {
			present = append(present, set)
		}
	}
	if len(present) == 0 {
		return fmt.Errorf("no known data characteristic present on device")
	}

	for _, set := range present {
		if err := s.transport.SubscribeNotify(set.service, set.notify, s.onNotification); err != nil {
			return fmt.Errorf("failed to subscribe to %s/%s: %w", set.service, set.notify, err)
		}
	}

	// The set found on the device overrides the advertisement bias; the bias
	// only breaks the tie in the unusual case that both sets are present
	s.altSet = present[0].alt
	if len(present) == 2 {
		s.altSet = s.altBias
	}
	s.state = stateAwaitingCalibration

	return nil
}

func (s *session) onNotification(_ string, data []byte, err error) {
	if err != nil {
		s.logger.Debugf("notification error: %s", err)
		return
	}

	s.handleFrame(data)
}

// handleFrame dispatches a single inbound frame by opcode. Unknown opcodes
// are logged and ignored, the firmware emits acknowledgments that carry no
// actionable payload
func (s *session) handleFrame(data []byte) {

	if len(data) < minFrameLen {
		s.logger.Debugf("discarding short frame (%d bytes)", len(data))
		return
	}

	// The first frame of a session reveals the protocol-type token, echoed
	// in every outbound frame so the firmware accepts our replies
	if !s.hasToken {
		s.token = data[offToken]
		s.hasToken = true
		s.logger.Debugf("captured protocol-type token 0x%02x", s.token)
	}

	switch data[0] {
	case opWeight:
		s.handleWeight(data)
	case opCalibration:
		s.handleCalibration(data)
	case opConfigAck:
		s.handleConfigAck()
	case opHandshakeTrigger:
		s.handleHandshakeTrigger()
	case opStoredData, opHandshakeAck, opStatusNotice:
		s.logger.Debugf("received informational frame 0x%02x (%d bytes)", data[0], len(data))
	default:
		s.logger.Debugf("ignoring unknown opcode 0x%02x (%d bytes)", data[0], len(data))
	}
}

// handleCalibration records the weight divisor reported by the device and,
// on the first calibration of the session, performs the deferred unit / time
// configuration. Sending configuration before this frame has been observed
// is silently ignored or misinterpreted by the firmware, hence the ordering
func (s *session) handleCalibration(data []byte) {

	if len(data) <= offCalibDivisor {
		s.logger.Debugf("discarding truncated calibration frame (%d bytes)", len(data))
		return
	}

	if data[offCalibDivisor] == calibFlagHundredths {
		s.divisor = divisorDefault
	} else {
		s.divisor = divisorAlt
	}
	s.logger.Debugf("calibration frame received, weight divisor %.0f", s.divisor)

	if s.calibrationSeen {
		return
	}

	if s.user == nil {
		s.logger.Errorf("no user profile present at configuration time, scale setup skipped")
		return
	}

	s.calibrationSeen = true
	if s.state < stateConfiguring {
		s.state = stateConfiguring
	}

	s.sendFrame(buildUnitConfig(s.token, s.configUnit()))
	s.sendFrame(buildTimeSync(s.token, s.now(), !s.altSet))
}

// handleConfigAck acknowledges the configuration step with a time sync
// frame. Before calibration the acknowledgment is meaningless and must not
// trigger any outbound traffic
func (s *session) handleConfigAck() {

	if !s.calibrationSeen {
		s.logger.Debugf("configuration ack before calibration, ignoring")
		return
	}

	s.sendFrame(buildTimeSync(s.token, s.now(), !s.altSet))
	if s.state < stateSteady {
		s.state = stateSteady
	}
}

// handleHandshakeTrigger answers the secondary vendor handshake with two
// fixed response frames and a query for stored historical data. The
// sub-sequence is independent of the weight publication path
func (s *session) handleHandshakeTrigger() {
	s.sendFrame(buildHandshakeReply(s.token, 0x01))
	s.sendFrame(buildHandshakeReply(s.token, 0x02))
	s.sendFrame(buildStoredDataQuery(s.token))
}

// handleWeight derives a measurement from a weight frame. Weight frames are
// meaningful in any handshake state since some devices stream readings
// before calibration; the divisor default covers that window
func (s *session) handleWeight(data []byte) {

	layoutB := s.isLayoutB(data)
	if (layoutB && len(data) < lenLayoutB) || (!layoutB && len(data) < lenLayoutA) {
		s.logger.Debugf("discarding truncated weight frame (%d bytes)", len(data))
		return
	}

	var (
		stable uint8
		res1   uint16
		res2   uint16
	)
	if layoutB {
		if !verifyTrailingChecksum(data[:lenLayoutB]) {
			s.logger.Debugf("checksum mismatch on weight frame, accepting anyway")
		}
		stable = data[offBStable]
		res1 = binary.BigEndian.Uint16(data[offBRes1:])
		res2 = binary.BigEndian.Uint16(data[offBRes2:])
	} else {
		stable = data[offAStable]
		res1 = binary.BigEndian.Uint16(data[offARes1:])
		res2 = binary.BigEndian.Uint16(data[offARes2:])
	}

	isStable := stable == 1 || (layoutB && stable == 2)
	if !isStable || s.published {
		return
	}

	raw := binary.BigEndian.Uint16(data[offWeight:])
	weight := float64(raw) / s.divisor

	// Readings outside the plausible range indicate a device reporting in
	// tenths before its calibration frame arrived
	if weight <= minPlausibleKg || weight >= maxPlausibleKg {
		weight /= 10.
	}
	if weight <= 0 {
		s.logger.Debugf("discarding non-positive stable weight (raw %d)", raw)
		return
	}

	if s.user == nil {
		s.logger.Errorf("no user profile present at measurement time, discarding stable weight %.2f kg", weight)
		return
	}

	impedance := impedanceOf(res1)
	s.logger.Debugf("stable weight %.2f kg (layout B: %v, resistances %d/%d, impedance %.1f)",
		weight, layoutB, res1, res2, impedance)

	comp, err := bodycomp.Estimate(s.user.Male, s.user.Age, s.user.HeightCm, weight, impedance)
	if err != nil {
		s.logger.Warnf("failed to estimate body composition: %s", err)
	}

	s.published = true
	s.sink(scale.Measurement{
		ID:            uuid.NewString(),
		UserID:        s.user.ID,
		TimeStamp:     s.now(),
		Elapsed:       s.elapsed(),
		Unit:          s.configUnit(),
		Weight:        weight,
		Impedance:     impedance,
		FatPercent:    comp.FatPercent,
		WaterPercent:  comp.WaterPercent,
		MusclePercent: comp.MusclePercent,
		BoneMassKg:    comp.BoneMassKg,
	})
}

// setUser replaces the user profile consumed by subsequent frames
func (s *session) setUser(user *scale.UserProfile) {
	s.user = user
}

// setUnit changes the display unit and reconfigures the device if the
// handshake has progressed far enough for configuration to be valid
func (s *session) setUnit(unit scale.Unit) error {
	s.unit = unit
	if !s.calibrationSeen {
		return nil
	}

	s.sendFrame(buildUnitConfig(s.token, unit))
	return nil
}

// syncTime pushes the current wall-clock time to the device; like any other
// configuration frame this is only valid once calibration has been observed
func (s *session) syncTime() error {
	if !s.calibrationSeen {
		return fmt.Errorf("time sync not available before device calibration")
	}

	s.sendFrame(buildTimeSync(s.token, s.now(), !s.altSet))
	return nil
}

// queryStoredData requests measurements recorded while disconnected
func (s *session) queryStoredData() error {
	if !s.hasToken {
		return fmt.Errorf("no exchange established with device yet")
	}

	s.sendFrame(buildStoredDataQuery(s.token))
	return nil
}

////////////////////////////////////////////////////////////////////////////////

// sendFrame writes a frame to the write characteristic of the active wire
// set. Writes are fire-and-forget, sequencing is enforced exclusively by
// session state, so failures are logged and swallowed
func (s *session) sendFrame(frame []byte) {
	set := primaryWireSet
	if s.altSet {
		set = altWireSet
	}

	if err := s.transport.WriteCharacteristic(set.service, set.write, frame, false); err != nil {
		s.logger.Debugf("failed to write frame 0x%02x: %s", frame[0], err)
	}
}

// isLayoutB applies the layout tie-break, re-evaluated on every frame since
// the divisor may not be known on the first frames: the frame is treated as
// layout B if the recorded divisor is the layout B typical value and the
// byte at the layout B stable position holds a small value
func (s *session) isLayoutB(data []byte) bool {
	if len(data) <= offBStable {
		return false
	}

	return s.divisor == divisorAlt && data[offBStable] <= layoutBStableMax
}

// configUnit resolves the unit written during configuration, preferring the
// user profile over the driver-level setting
func (s *session) configUnit() scale.Unit {
	if s.user != nil && s.user.Unit != "" && s.user.Unit != scale.UnitUnknown {
		return s.user.Unit
	}

	return s.unit
}
