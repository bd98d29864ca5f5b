package bodycomp

import (
	"fmt"
	"math"
)

const (
	minFatPercent = 5.0
	maxFatPercent = 75.0

	// Correction applied for the deviation of the impedance reading from a
	// reference value; higher impedance indicates a higher fat fraction
	impedanceCoef = 0.08
	impedanceRef  = 40.0

	// Fractions of fat-free mass attributed to water, skeletal muscle and
	// bone mineral (standard approximations)
	waterFFMFraction  = 0.73
	muscleFFMFraction = 0.54
	boneFFMFraction   = 0.042
)

// Composition denotes body composition values derived from a single weight
// and impedance reading
type Composition struct {
	FatPercent    float64
	WaterPercent  float64
	MusclePercent float64
	BoneMassKg    float64
}

// Estimate derives body composition from anthropometric data and a
// bioelectrical impedance reading. The function is pure: identical inputs
// yield identical outputs
func Estimate(male bool, age int, heightCm, weightKg, impedance float64) (Composition, error) {

	if age <= 0 || heightCm <= 0 || weightKg <= 0 || impedance <= 0 {
		return Composition{}, fmt.Errorf("invalid estimation input (age: %d, height: %.1f, weight: %.1f, impedance: %.1f)",
			age, heightCm, weightKg, impedance)
	}

	// Deurenberg-style fat fraction from BMI, age and sex, corrected by the
	// impedance deviation and clamped to the physiological range
	heightM := heightCm / 100.
	bmi := weightKg / (heightM * heightM)
	sexTerm := 0.0
	if male {
		sexTerm = 10.8
	}
	fat := 1.2*bmi + 0.23*float64(age) - sexTerm - 5.4 + impedanceCoef*(impedance-impedanceRef)
	fat = clamp(fat, minFatPercent, maxFatPercent)

	ffm := weightKg * (1. - fat/100.)

	return Composition{
		FatPercent:    round2(fat),
		WaterPercent:  round2(ffm * waterFFMFraction / weightKg * 100.),
		MusclePercent: round2(ffm * muscleFFMFraction / weightKg * 100.),
		BoneMassKg:    round2(ffm * boneFFMFraction),
	}, nil
}

////////////////////////////////////////////////////////////////////////////////

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}

	return v
}

func round2(v float64) float64 {
	return math.Round(v*100.) / 100.
}
