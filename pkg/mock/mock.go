package mock

import (
	"fmt"
	"time"

	"github.com/JPFrancoia/openScale/pkg/bodycomp"
	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/fatih/stopwatch"
	"github.com/google/uuid"
)

const (
	defaultDeviceName   = "Mock Scale"
	defaultBatteryLevel = 87
	defaultTargetWeight = 72.5
	defaultImpedance    = 30.0
	defaultStepDelay    = 200 * time.Millisecond

	weighSteps = 8
)

// Mock denotes a simulated body scale, going through the same weighing cycle
// as a real device without any bluetooth hardware present
type Mock struct {
	connectionStatus scale.ConnectionStatus
	batteryLevel     byte
	unit             scale.Unit
	user             *scale.UserProfile

	targetWeight float64
	impedance    float64
	stepDelay    time.Duration

	timer *stopwatch.Stopwatch

	deviceName string

	stateChangeHandler func(status scale.ConnectionStatus)
	stateChangeChan    chan scale.ConnectionStatus

	measurementHandler func(m scale.Measurement)
	measurementChan    chan scale.Measurement
	promptHandler      func(p scale.Prompt)
	doneChan           chan struct{}
}

// New instantiates a new Mock struct, executing functional options, if any
func New(options ...func(*Mock)) (*Mock, error) {

	// Initialize a new instance of a Mock scale
	v := &Mock{
		deviceName:   defaultDeviceName,
		batteryLevel: defaultBatteryLevel,
		unit:         scale.UnitKg,
		targetWeight: defaultTargetWeight,
		impedance:    defaultImpedance,
		stepDelay:    defaultStepDelay,
		doneChan:     make(chan struct{}),
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(v)
	}

	return v, nil
}

// ConnectionStatus returns the current status of the simulated device
func (v *Mock) ConnectionStatus() scale.ConnectionStatus {
	return v.connectionStatus
}

// BatteryLevel returns the current battery level as a fraction (0.0 - 1.0)
func (v *Mock) BatteryLevel() float64 {
	return float64(v.batteryLevel) / 100.
}

// BatteryLevelRaw returns the current battery level in its raw form
func (v *Mock) BatteryLevelRaw() int {
	return int(v.batteryLevel)
}

// Unit returns the display unit currently configured on the device
func (v *Mock) Unit() scale.Unit {
	return v.unit
}

// SetUnit sets the display unit
func (v *Mock) SetUnit(unit scale.Unit) error {
	v.unit = unit

	return nil
}

// Capabilities returns the handler match of the simulated device
func (v *Mock) Capabilities() scale.HandlerMatch {
	return scale.HandlerMatch{
		DisplayName: v.deviceName,
		Driver:      "mock",
		Supported: []scale.Capability{
			scale.CapabilityLiveWeight,
			scale.CapabilityBodyComposition,
			scale.CapabilityTimeSync,
		},
		Implemented: []scale.Capability{
			scale.CapabilityLiveWeight,
			scale.CapabilityBodyComposition,
			scale.CapabilityTimeSync,
		},
		LinkMode: scale.LinkModeConnectGATT,
	}
}

// User returns the user profile the scale is currently weighing
func (v *Mock) User() scale.UserProfile {
	if v.user == nil {
		return scale.UserProfile{}
	}

	return *v.user
}

// SetUser sets the user profile the scale is weighing
func (v *Mock) SetUser(user scale.UserProfile) error {
	v.user = &user

	return nil
}

// SyncTime pushes the current wall-clock time to the simulated device
func (v *Mock) SyncTime() error {
	return nil
}

// QueryStoredData requests measurements recorded while disconnected
func (v *Mock) QueryStoredData() error {
	return nil
}

// ElapsedTime returns the duration of the current weighing session
func (v *Mock) ElapsedTime() time.Duration {
	if v.timer != nil {
		return v.timer.ElapsedTime()
	}

	return 0
}

// SetStateChangeHandler defines a handler function that is called upon state change
func (v *Mock) SetStateChangeHandler(fn func(status scale.ConnectionStatus)) {
	v.stateChangeHandler = fn
}

// SetStateChangeChannel defines a channel that is fed upon state change
func (v *Mock) SetStateChangeChannel(ch chan scale.ConnectionStatus) {
	v.stateChangeChan = ch
}

// SetMeasurementHandler defines a handler function that is called upon
// publication of a measurement
func (v *Mock) SetMeasurementHandler(fn func(m scale.Measurement)) {
	v.measurementHandler = fn
}

// SetMeasurementChannel defines a channel that is fed upon publication of a
// measurement
func (v *Mock) SetMeasurementChannel(ch chan scale.Measurement) {
	v.measurementChan = ch
}

// SetPromptHandler defines a handler function that is called to guide the
// user through a weighing session
func (v *Mock) SetPromptHandler(fn func(p scale.Prompt)) {
	v.promptHandler = fn
}

// Weigh runs one simulated weighing session: the connection is established,
// the user is prompted to step on, the reading settles and exactly one
// measurement is published. The call blocks for the duration of the session
func (v *Mock) Weigh() error {

	if v.user == nil {
		return fmt.Errorf("no user profile present")
	}

	v.setStatus(scale.StateConnected, nil)
	if v.timer == nil {
		v.timer = stopwatch.Start(0)
	} else {
		v.timer.Reset()
		v.timer.Start(0)
	}

	v.prompt()

	// Simulate the reading settling on the target weight
	for i := 0; i < weighSteps; i++ {
		select {
		case <-v.doneChan:
			return fmt.Errorf("weighing aborted")
		case <-time.After(v.stepDelay):
		}
	}
	v.timer.Stop()

	comp, err := bodycomp.Estimate(v.user.Male, v.user.Age, v.user.HeightCm, v.targetWeight, v.impedance)
	if err != nil {
		return fmt.Errorf("failed to estimate body composition: %w", err)
	}

	v.setMeasurement(scale.Measurement{
		ID:            uuid.NewString(),
		UserID:        v.user.ID,
		TimeStamp:     time.Now(),
		Elapsed:       v.ElapsedTime(),
		Unit:          v.unit,
		Weight:        v.targetWeight,
		Impedance:     v.impedance,
		FatPercent:    comp.FatPercent,
		WaterPercent:  comp.WaterPercent,
		MusclePercent: comp.MusclePercent,
		BoneMassKg:    comp.BoneMassKg,
	})
	v.setStatus(scale.StateDisconnected, nil)

	return nil
}

// Close terminates the simulated connection
func (v *Mock) Close() error {
	close(v.doneChan)

	return nil
}

////////////////////////////////////////////////////////////////////////////////

func (v *Mock) setStatus(state scale.State, err error) {
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

func (v *Mock) setMeasurement(m scale.Measurement) {

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

func (v *Mock) prompt() {
	p := scale.PromptStepOn
	if v.user != nil && v.user.AssistedWeighing {
		p = scale.PromptStepOnAssisted
	}

	if v.promptHandler != nil {
		v.promptHandler(p)
	}
}
