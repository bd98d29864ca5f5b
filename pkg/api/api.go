package api

import (
	"sync"

	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/gofiber/fiber/v2"
)

const measurementBufferLen = 16

// API denotes a REST API for a scale
type API struct {
	scale  scale.Scale
	router *fiber.App

	mu     sync.RWMutex
	latest scale.Measurement
	seen   bool
}

// New instantiates a new API
func New(s scale.Scale, endpoint string) *API {

	api := API{
		scale:  s,
		router: fiber.New(),
	}

	// Track measurements as they are published so the most recent one can be
	// queried at any time
	measurements := make(chan scale.Measurement, measurementBufferLen)
	s.SetMeasurementChannel(measurements)
	go api.track(measurements)

	// Setup routes
	api.router.Get("/api/v1/status", api.handleStatus())
	api.router.Get("/api/v1/capabilities", api.handleCapabilities())
	api.router.Get("/api/v1/measurement/latest", api.handleLatestMeasurement())
	api.router.Post("/api/v1/sync_time", api.handleSyncTime())

	// Start to listen in goroutine
	go func() {
		if err := api.router.Listen(endpoint); err != nil {
			panic(err)
		}
	}()

	return &api
}

func (api *API) handleStatus() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		status := api.scale.ConnectionStatus()

		res := fiber.Map{
			"state":         status.State.String(),
			"battery_level": api.scale.BatteryLevelRaw(),
			"unit":          api.scale.Unit(),
			"device":        api.scale.Capabilities().DisplayName,
		}
		if status.Error != nil {
			res["error"] = status.Error.Error()
		}

		return c.JSON(res)
	}
}

func (api *API) handleCapabilities() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return c.JSON(api.scale.Capabilities())
	}
}

func (api *API) handleLatestMeasurement() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		api.mu.RLock()
		defer api.mu.RUnlock()

		if !api.seen {
			return fiber.NewError(fiber.StatusNotFound, "no measurement recorded yet")
		}

		return c.JSON(api.latest)
	}
}

func (api *API) handleSyncTime() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		return api.scale.SyncTime()
	}
}

func (api *API) track(measurements chan scale.Measurement) {
	for m := range measurements {
		api.mu.Lock()
		api.latest = m
		api.seen = true
		api.mu.Unlock()
	}
}
