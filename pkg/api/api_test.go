package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JPFrancoia/openScale/pkg/mock"
	"github.com/JPFrancoia/openScale/pkg/scale"
)

var testUser = scale.UserProfile{ID: "user-1", Name: "Test User", Male: true, Age: 35, HeightCm: 180., Unit: scale.UnitKg}

func newTestAPI(t *testing.T) (*API, *mock.Mock) {
	t.Helper()

	m, err := mock.New(
		mock.WithUserProfile(testUser),
		mock.WithTargetWeight(81.4),
		mock.WithStepDelay(time.Millisecond),
	)
	if err != nil {
		t.Fatalf("failed to instantiate mock scale: %s", err)
	}

	return New(m, "localhost:0"), m
}

func TestStatusEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	resp, err := a.router.Test(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if err != nil {
		t.Fatalf("failed to query status: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var status struct {
		State        string `json:"state"`
		BatteryLevel int    `json:"battery_level"`
		Unit         string `json:"unit"`
		Device       string `json:"device"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode status: %s", err)
	}
	if status.State != "scanning" {
		t.Fatalf("unexpected state: %s", status.State)
	}
	if status.BatteryLevel != 87 {
		t.Fatalf("unexpected battery level: %d", status.BatteryLevel)
	}
	if status.Unit != "kg" {
		t.Fatalf("unexpected unit: %s", status.Unit)
	}
	if status.Device == "" {
		t.Fatalf("status carries no device name")
	}
}

func TestCapabilitiesEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	resp, err := a.router.Test(httptest.NewRequest(http.MethodGet, "/api/v1/capabilities", nil))
	if err != nil {
		t.Fatalf("failed to query capabilities: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}

	var match scale.HandlerMatch
	if err := json.NewDecoder(resp.Body).Decode(&match); err != nil {
		t.Fatalf("failed to decode capabilities: %s", err)
	}
	if match.Driver != "mock" || len(match.Implemented) == 0 {
		t.Fatalf("unexpected capabilities: %+v", match)
	}
}

func TestLatestMeasurementEndpoint(t *testing.T) {
	a, m := newTestAPI(t)

	// No measurement exists before the first weighing session
	resp, err := a.router.Test(httptest.NewRequest(http.MethodGet, "/api/v1/measurement/latest", nil))
	if err != nil {
		t.Fatalf("failed to query latest measurement: %s", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status code before weighing: %d", resp.StatusCode)
	}

	if err := m.Weigh(); err != nil {
		t.Fatalf("failed to run weighing session: %s", err)
	}

	// The measurement passes through a channel, poll briefly until it surfaces
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := a.router.Test(httptest.NewRequest(http.MethodGet, "/api/v1/measurement/latest", nil))
		if err != nil {
			t.Fatalf("failed to query latest measurement: %s", err)
		}
		if resp.StatusCode == http.StatusOK {
			var measurement scale.Measurement
			if err := json.NewDecoder(resp.Body).Decode(&measurement); err != nil {
				t.Fatalf("failed to decode measurement: %s", err)
			}
			if measurement.Weight != 81.4 || measurement.UserID != testUser.ID {
				t.Fatalf("unexpected measurement: %+v", measurement)
			}
			return
		}

		if time.Now().After(deadline) {
			t.Fatalf("measurement did not surface, last status code %d", resp.StatusCode)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSyncTimeEndpoint(t *testing.T) {
	a, _ := newTestAPI(t)

	resp, err := a.router.Test(httptest.NewRequest(http.MethodPost, "/api/v1/sync_time", nil))
	if err != nil {
		t.Fatalf("failed to trigger time sync: %s", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: %d", resp.StatusCode)
	}
}
