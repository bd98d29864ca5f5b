package vitalink

import (
	"fmt"
	"strings"
	"time"

	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/fako1024/gatt"
	"github.com/fatih/stopwatch"
)

const (
	driverName          = "vitalink"
	displayName         = "VitaLink Body Scale"
	deviceNameSubstring = "vitalink"

	deviceInfoService    = "180a"
	manufacturerNameChar = "2a29"
	modelNumberChar      = "2a24"
	batteryService       = "180f"
	batteryLevelChar     = "2a19"
)

func init() {
	scale.MustRegister(driverName, scale.MatcherFunc(Match))
}

// VitaLink denotes a VitaLink bluetooth body composition scale
type VitaLink struct {
	connectionStatus scale.ConnectionStatus
	batteryLevel     byte
	manufacturer     string
	model            string
	unit             scale.Unit
	user             *scale.UserProfile
	match            scale.HandlerMatch

	timer *stopwatch.Stopwatch

	deviceID   string
	deviceName string
	periphID   string

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus

	measurementHandler func(m scale.Measurement)
	measurementChan    chan scale.Measurement
	promptHandler      func(p scale.Prompt)
	doneChan           chan struct{}

	session *session

	btDevice     gatt.Device
	btPeripheral gatt.Peripheral

	logger scale.Logger
}

// New instantiates a new VitaLink struct, executing functional options, if any
func New(options ...func(*VitaLink)) (*VitaLink, error) {

	// Initialize a new instance of a VitaLink scale
	v := &VitaLink{
		unit:     scale.UnitKg,
		doneChan: make(chan struct{}),
		logger:   &scale.NullLogger{},
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(v)
	}

	// Initialize a new GATT device (if not provided as option)
	if v.btDevice == nil {
		btDevice, err := gatt.NewDevice(defaultBTClientOptions...)
		if err != nil {
			return nil, err
		}
		v.btDevice = btDevice
	}

	return v, v.subscribe()
}

// Match runs capability negotiation for an advertised device. A match
// requires both a vendor service UUID and the vendor name substring, either
// alone is insufficient to avoid false positives on scales using
// open-standard services
func Match(adv scale.Advertisement) (scale.HandlerMatch, bool) {

	if !strings.Contains(strings.ToLower(adv.Name), deviceNameSubstring) {
		return scale.HandlerMatch{}, false
	}

	hasPrimary := adv.HasService(primaryWireSet.service)
	hasAlt := adv.HasService(altWireSet.service)
	if !hasPrimary && !hasAlt {
		return scale.HandlerMatch{}, false
	}

	return newHandlerMatch(hasAlt && !hasPrimary), true
}

// ConnectionStatus returns the current status of the bluetooth device
func (v *VitaLink) ConnectionStatus() scale.ConnectionStatus {
	return v.connectionStatus
}

// BatteryLevel returns the current battery level as a fraction (0.0 - 1.0)
func (v *VitaLink) BatteryLevel() float64 {
	return float64(v.batteryLevel) / 100.
}

// BatteryLevelRaw returns the current battery level in its raw form
func (v *VitaLink) BatteryLevelRaw() int {
	return int(v.batteryLevel)
}

// DeviceInfo returns manufacturer and model as reported by the device
func (v *VitaLink) DeviceInfo() (manufacturer, model string) {
	return v.manufacturer, v.model
}

// Unit returns the display unit currently configured on the device
func (v *VitaLink) Unit() scale.Unit {
	return v.unit
}

// SetUnit sets the display unit, reconfiguring the device if a session is
// established and the handshake permits configuration
func (v *VitaLink) SetUnit(unit scale.Unit) error {

	if unit != scale.UnitKg && unit != scale.UnitLb && unit != scale.UnitSt {
		return fmt.Errorf("unsupported unit: %s", unit)
	}

	v.unit = unit
	if v.session != nil {
		return v.session.setUnit(unit)
	}

	return nil
}

// Capabilities returns the handler match negotiated for the connected
// device (the zero value until a device has been discovered)
func (v *VitaLink) Capabilities() scale.HandlerMatch {
	return v.match
}

// User returns the user profile the scale is currently weighing
func (v *VitaLink) User() scale.UserProfile {
	if v.user == nil {
		return scale.UserProfile{}
	}

	return *v.user
}

// SetUser sets the user profile the scale is weighing
func (v *VitaLink) SetUser(user scale.UserProfile) error {
	v.user = &user
	if v.session != nil {
		v.session.setUser(v.user)
	}

	return nil
}

// SyncTime pushes the current wall-clock time to the device
func (v *VitaLink) SyncTime() error {
	if v.session == nil {
		return fmt.Errorf("not connected to a device")
	}

	return v.session.syncTime()
}

// QueryStoredData requests measurements recorded while disconnected; the
// responses are informational and surface in the debug log only
func (v *VitaLink) QueryStoredData() error {
	if v.session == nil {
		return fmt.Errorf("not connected to a device")
	}

	return v.session.queryStoredData()
}

// ElapsedTime returns the duration of the current weighing session
func (v *VitaLink) ElapsedTime() time.Duration {
	if v.timer != nil {
		return v.timer.ElapsedTime()
	}

	return 0
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (v *VitaLink) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	v.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that is fed upon state change
func (v *VitaLink) SetStateChangeChannel(ch chan scale.ConnectionStatus) {
	v.stateChangeChan = ch
}

// SetMeasurementHandler defines a handler function that is called upon
// publication of a measurement
func (v *VitaLink) SetMeasurementHandler(fn func(m scale.Measurement)) {
	v.measurementHandler = fn
}

// SetMeasurementChannel defines a channel that is fed upon publication of a
// measurement
func (v *VitaLink) SetMeasurementChannel(ch chan scale.Measurement) {
	v.measurementChan = ch
}

// SetPromptHandler defines a handler function that is called to guide the
// user through a weighing session
func (v *VitaLink) SetPromptHandler(fn func(p scale.Prompt)) {
	v.promptHandler = fn
}

// Close terminates the connection to the device
func (v *VitaLink) Close() error {
	close(v.doneChan)

	_ = v.btDevice.StopScanning()
	return v.btDevice.RemoveAllServices()
}

////////////////////////////////////////////////////////////////////////////////

func (v *VitaLink) subscribe() error {

	// Register handlers
	v.btDevice.Handle(
		gatt.AddPeripheralDiscovered(v.genOnPeriphDiscovered()),
		gatt.AddPeripheralConnected(v.onPeriphConnected),
		gatt.AddPeripheralDisconnected(v.onPeriphDisconnected),
	)

	// Initialize the device
	return v.btDevice.Init(v.onStateChanged)
}

func (v *VitaLink) setStatus(state scale.State, err error) {
	v.connectionStatus = scale.ConnectionStatus{
		State: state,
		Error: err,
	}

	// Call handler function, if any
	if v.stateChangeHandler != nil {
		v.stateChangeHandler(v.connectionStatus)
	}

	// Put state change on channel, if any
	if v.stateChangeChan != nil {
		select {
		case v.stateChangeChan <- v.connectionStatus:
		default:
		}
	}
}

func (v *VitaLink) setMeasurement(m scale.Measurement) {

	v.logger.Infof("measurement published: %.2f kg (fat %.1f%%, water %.1f%%, muscle %.1f%%, bone %.2f kg) after %v",
		m.Weight, m.FatPercent, m.WaterPercent, m.MusclePercent, m.BoneMassKg, m.Elapsed)

	// Call handler function, if any
	if v.measurementHandler != nil {
		v.measurementHandler(m)
	}

	// Put measurement on channel, if any
	if v.measurementChan != nil {
		select {
		case v.measurementChan <- m:
		default:
		}
	}
}

func (v *VitaLink) promptStepOn() {
	prompt := scale.PromptStepOn
	if v.user != nil && v.user.AssistedWeighing {
		prompt = scale.PromptStepOnAssisted
	}

	if v.promptHandler != nil {
		v.promptHandler(prompt)
	}
}

// readDeviceInfo reads the standard identity and battery characteristics;
// all values are informational only and failures are ignored
func (v *VitaLink) readDeviceInfo(t scale.Transport) {

	if data, err := t.ReadCharacteristic(deviceInfoService, manufacturerNameChar); err == nil {
		v.manufacturer = string(data)
	} else {
		v.logger.Debugf("failed to read manufacturer name: %s", err)
	}
	if data, err := t.ReadCharacteristic(deviceInfoService, modelNumberChar); err == nil {
		v.model = string(data)
	} else {
		v.logger.Debugf("failed to read model number: %s", err)
	}

	data, err := t.ReadCharacteristic(batteryService, batteryLevelChar)
	if err != nil {
		v.logger.Debugf("failed to read battery level: %s", err)
	} else if len(data) > 0 {
		v.batteryLevel = data[0]
	}

	v.logger.Infof("device identity: `%s %s` (battery %d%%)", v.manufacturer, v.model, v.batteryLevel)
}

////////////////////////////////////////////////////////////////////////////////

func (v *VitaLink) onStateChanged(d gatt.Device, s gatt.State) {
	switch s {
	case gatt.StatePoweredOn:
		v.setStatus(scale.StateScanning, nil)
		if err := d.Scan([]gatt.UUID{}, false); err != nil {
			v.logger.Warnf("failed to enable initial scanning: %s", err)
		}
		return
	case gatt.StatePoweredOff:
		v.setStatus(scale.StateDisconnected, nil)
		return
	default:
		if err := d.StopScanning(); err != nil {
			v.logger.Warnf("failed to stop initial scanning: %s", err)
		}
	}
}

func (v *VitaLink) genOnPeriphDiscovered() func(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {
	return func(p gatt.Peripheral, a *gatt.Advertisement, rssi int) {

		v.logger.Debugf("discovered device `%s/%s`", p.Name(), p.ID())

		match, ok := v.matchDevice(p, advertisementOf(p, a))
		if !ok {
			return
		}
		v.match = match
		v.periphID = p.ID()

		v.logger.Debugf("connecting device `%s/%s` (layout B bias: %v)", p.Name(), p.ID(), match.PreferAltWireSet)

		// Stop scanning once we've got the peripheral we're looking for.
		if err := p.Device().StopScanning(); err != nil {
			v.logger.Warnf("failed to stop initial scanning: %s", err)
		}
		if err := p.Device().Connect(p); err != nil {
			v.logger.Errorf("Failed to connect device `%s/%s`: %s", p.Name(), p.ID(), err)
		}
	}
}

func (v *VitaLink) onPeriphConnected(p gatt.Peripheral, connErr error) {

	if !v.thisDevice(p) {
		return
	}

	v.logger.Debugf("connected peripheral `%s/%s`", p.Name(), p.ID())

	v.setStatus(scale.StateConnected, nil)
	defer func() {
		_ = p.Device().CancelConnection(p)
		v.session = nil
		v.setStatus(scale.StateDisconnected, connErr)
	}()

	// Set connection MTU
	if err := p.SetMTU(500); err != nil {
		connErr = fmt.Errorf("failed to set MTU: %w", err)
		return
	}

	transport, err := newGATTTransport(p)
	if err != nil {
		connErr = err
		return
	}
	v.btPeripheral = p

	// Start the session stopwatch
	if v.timer == nil {
		v.timer = stopwatch.Start(0)
	} else {
		v.timer.Reset()
		v.timer.Start(0)
	}

	v.readDeviceInfo(transport)

	// Build a fresh session with all heuristics reset to defaults; nothing
	// is carried over from a previous connection
	sess := newSession(transport, v.logger)
	sess.user = v.user
	sess.unit = v.unit
	sess.altBias = v.match.PreferAltWireSet
	sess.elapsed = v.ElapsedTime
	sess.sink = v.setMeasurement
	if err := sess.start(); err != nil {
		connErr = fmt.Errorf("failed to start scale session: %w", err)
		return
	}
	v.session = sess

	v.promptStepOn()

	v.logger.Debugf("waiting to release peripheral `%s/%s`", p.Name(), p.ID())
	<-v.doneChan
	v.logger.Debugf("released peripheral `%s/%s`", p.Name(), p.ID())
}

func (v *VitaLink) onPeriphDisconnected(p gatt.Peripheral, _ error) {

	if !v.thisDevice(p) {
		return
	}

	if v.timer != nil {
		v.timer.Stop()
	}

	v.disconnect()
	v.logger.Debugf("disconnected peripheral `%s/%s`", p.Name(), p.ID())

	time.Sleep(100 * time.Millisecond)
	v.setStatus(scale.StateScanning, nil)
	if err := v.btDevice.Scan([]gatt.UUID{}, false); err != nil {
		v.logger.Warnf("failed to re-enable scanning after disconnect: %s", err)
	}
}

// matchDevice decides whether a discovered peripheral is handled by this
// driver. An explicit device ID or name option pins the device, otherwise
// negotiation runs through the capability registry
func (v *VitaLink) matchDevice(p gatt.Peripheral, adv scale.Advertisement) (scale.HandlerMatch, bool) {

	if v.deviceID != "" {
		if !strings.EqualFold(p.ID(), v.deviceID) {
			return scale.HandlerMatch{}, false
		}
		return newHandlerMatch(adv.HasService(altWireSet.service) && !adv.HasService(primaryWireSet.service)), true
	}

	if v.deviceName != "" {
		if !strings.EqualFold(p.Name(), v.deviceName) {
			return scale.HandlerMatch{}, false
		}
		hasPrimary := adv.HasService(primaryWireSet.service)
		hasAlt := adv.HasService(altWireSet.service)
		if !hasPrimary && !hasAlt {
			return scale.HandlerMatch{}, false
		}
		return newHandlerMatch(hasAlt && !hasPrimary), true
	}

	match, ok := scale.Match(adv)
	if !ok || match.Driver != driverName {
		return scale.HandlerMatch{}, false
	}

	return match, true
}

func (v *VitaLink) thisDevice(p gatt.Peripheral) bool {
	return v.periphID != "" && strings.EqualFold(p.ID(), v.periphID)
}

func (v *VitaLink) disconnect() {
	select {
	case v.doneChan <- struct{}{}:
	default:
	}
}

////////////////////////////////////////////////////////////////////////////////

func newHandlerMatch(preferAlt bool) scale.HandlerMatch {
	return scale.HandlerMatch{
		DisplayName: displayName,
		Driver:      driverName,
		Supported: []scale.Capability{
			scale.CapabilityLiveWeight,
			scale.CapabilityBodyComposition,
			scale.CapabilityTimeSync,
			scale.CapabilityStoredData,
		},
		Implemented: []scale.Capability{
			scale.CapabilityLiveWeight,
			scale.CapabilityBodyComposition,
			scale.CapabilityTimeSync,
		},
		LinkMode:         scale.LinkModeConnectGATT,
		PreferAltWireSet: preferAlt,
	}
}

func advertisementOf(p gatt.Peripheral, a *gatt.Advertisement) scale.Advertisement {
	adv := scale.Advertisement{Name: p.Name()}
	if a == nil {
		return adv
	}

	if a.LocalName != "" {
		adv.Name = a.LocalName
	}
	for _, svc := range a.Services {
		adv.Services = append(adv.Services, svc.String())
	}

	return adv
}
