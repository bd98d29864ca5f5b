package mock

import (
	"time"

	"github.com/JPFrancoia/openScale/pkg/scale"
)

// WithUserProfile sets the user profile weighed by the simulated device
func WithUserProfile(user scale.UserProfile) func(*Mock) {
	return func(v *Mock) {
		v.user = &user
	}
}

// WithTargetWeight sets the weight (in kg) the simulated reading settles on
func WithTargetWeight(weight float64) func(*Mock) {
	return func(v *Mock) {
		v.targetWeight = weight
	}
}

// WithImpedance sets the impedance reported by the simulated device
func WithImpedance(impedance float64) func(*Mock) {
	return func(v *Mock) {
		v.impedance = impedance
	}
}

// WithStepDelay sets the delay between simulated reading steps
func WithStepDelay(delay time.Duration) func(*Mock) {
	return func(v *Mock) {
		v.stepDelay = delay
	}
}

// WithUnit sets the initial display unit of the simulated device
func WithUnit(unit scale.Unit) func(*Mock) {
	return func(v *Mock) {
		v.unit = unit
	}
}
