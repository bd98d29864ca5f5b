package mock

import (
	"testing"
	"time"

	"github.com/JPFrancoia/openScale/pkg/scale"
)

var testUser = scale.UserProfile{ID: "user-1", Name: "Test User", Male: true, Age: 35, HeightCm: 180., Unit: scale.UnitKg}

func TestWeigh(t *testing.T) {
	m, err := New(
		WithUserProfile(testUser),
		WithTargetWeight(81.4),
		WithStepDelay(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("failed to instantiate mock scale: %s", err)
	}
	defer func() {
		if err := m.Close(); err != nil {
			t.Fatalf("failed to close mock scale: %s", err)
		}
	}()

	var (
		measurements []scale.Measurement
		states       []scale.State
		prompts      []scale.Prompt
	)
	m.SetMeasurementHandler(func(m scale.Measurement) { measurements = append(measurements, m) })
	m.SetStateChangeHandler(func(status scale.ConnectionStatus) { states = append(states, status.State) })
	m.SetPromptHandler(func(p scale.Prompt) { prompts = append(prompts, p) })

	if err := m.Weigh(); err != nil {
		t.Fatalf("failed to run weighing session: %s", err)
	}

	if len(measurements) != 1 {
		t.Fatalf("unexpected number of measurements: %d", len(measurements))
	}
	measurement := measurements[0]
	if measurement.Weight != 81.4 {
		t.Fatalf("unexpected weight: %f", measurement.Weight)
	}
	if measurement.UserID != testUser.ID {
		t.Fatalf("unexpected user ID: %s", measurement.UserID)
	}
	if measurement.ID == "" || measurement.TimeStamp.IsZero() {
		t.Fatalf("incomplete measurement: %+v", measurement)
	}
	if measurement.FatPercent <= 0. || measurement.WaterPercent <= 0. {
		t.Fatalf("incomplete body composition: %+v", measurement)
	}
	if measurement.Elapsed <= 0 {
		t.Fatalf("unexpected elapsed time: %s", measurement.Elapsed)
	}

	if len(states) != 2 || states[0] != scale.StateConnected || states[1] != scale.StateDisconnected {
		t.Fatalf("unexpected state sequence: %v", states)
	}
	if len(prompts) != 1 || prompts[0] != scale.PromptStepOn {
		t.Fatalf("unexpected prompts: %v", prompts)
	}
}

func TestWeighWithoutUser(t *testing.T) {
	m, err := New(WithStepDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("failed to instantiate mock scale: %s", err)
	}

	if err := m.Weigh(); err == nil {
		t.Fatalf("weighing without a user profile was unexpectedly successful")
	}
}

func TestAssistedPrompt(t *testing.T) {
	user := testUser
	user.AssistedWeighing = true

	m, err := New(WithUserProfile(user), WithStepDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("failed to instantiate mock scale: %s", err)
	}

	var prompts []scale.Prompt
	m.SetPromptHandler(func(p scale.Prompt) { prompts = append(prompts, p) })

	if err := m.Weigh(); err != nil {
		t.Fatalf("failed to run weighing session: %s", err)
	}
	if len(prompts) != 1 || prompts[0] != scale.PromptStepOnAssisted {
		t.Fatalf("unexpected prompts: %v", prompts)
	}
}

func TestCloseAbortsWeighing(t *testing.T) {
	m, err := New(WithUserProfile(testUser), WithStepDelay(time.Second))
	if err != nil {
		t.Fatalf("failed to instantiate mock scale: %s", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Weigh()
	}()

	time.Sleep(10 * time.Millisecond)
	if err := m.Close(); err != nil {
		t.Fatalf("failed to close mock scale: %s", err)
	}

	select {
	case err := <-errChan:
		if err == nil {
			t.Fatalf("aborted weighing session was unexpectedly successful")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("weighing session did not abort on close")
	}
}

func TestMeasurementChannel(t *testing.T) {
	m, err := New(WithUserProfile(testUser), WithStepDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("failed to instantiate mock scale: %s", err)
	}

	ch := make(chan scale.Measurement, 1)
	m.SetMeasurementChannel(ch)

	if err := m.Weigh(); err != nil {
		t.Fatalf("failed to run weighing session: %s", err)
	}

	select {
	case measurement := <-ch:
		if measurement.Weight != defaultTargetWeight {
			t.Fatalf("unexpected weight: %f", measurement.Weight)
		}
	default:
		t.Fatalf("no measurement on channel after weighing session")
	}
}
