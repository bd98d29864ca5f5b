package scale

// Basic denotes a basic body scale
type Basic interface {

	// ConnectionStatus returns the current connection status of the scale device
	ConnectionStatus() ConnectionStatus

	// BatteryLevel returns the current battery level as a fraction (0.0 - 1.0)
	BatteryLevel() float64

	// BatteryLevelRaw returns the current battery level in its raw form
	BatteryLevelRaw() int

	// Unit returns the display unit currently configured on the device
	Unit() Unit

	// SetUnit sets the display unit
	SetUnit(unit Unit) error

	// Capabilities returns the handler match negotiated for the connected device
	Capabilities() HandlerMatch

	// SetStateChangeHandler defines a handler function that is called upon state change
	SetStateChangeHandler(fn func(status ConnectionStatus))

	// SetStateChangeChannel defines a channel that is fed upon state change
	SetStateChangeChannel(ch chan ConnectionStatus)

	// SetMeasurementHandler defines a handler function that is called upon
	// publication of a measurement
	SetMeasurementHandler(fn func(m Measurement))

	// SetMeasurementChannel defines a channel that is fed upon publication of
	// a measurement
	SetMeasurementChannel(ch chan Measurement)

	// SetPromptHandler defines a handler function that is called to guide the
	// user through a weighing session
	SetPromptHandler(fn func(p Prompt))

	// Close terminates the connection to the device
	Close() error
}

// BodyComposition denotes per-user body composition functionality
type BodyComposition interface {

	// User returns the user profile the scale is currently weighing
	User() UserProfile

	// SetUser sets the user profile the scale is weighing
	SetUser(user UserProfile) error
}

// Clock denotes wall-clock synchronization functionality
type Clock interface {

	// SyncTime pushes the current wall-clock time to the device
	SyncTime() error
}

// History denotes retrieval of measurements stored on the device
type History interface {

	// QueryStoredData requests measurements recorded while disconnected
	QueryStoredData() error
}

// WithClock denotes a scale with wall-clock synchronization functionality
type WithClock interface {
	Basic
	Clock
}

// Scale denotes the "default" scale containing all functionality
type Scale interface {
	Basic
	BodyComposition
	Clock
	History
}
