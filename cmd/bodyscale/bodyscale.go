package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/JPFrancoia/openScale/pkg/api"
	"github.com/JPFrancoia/openScale/pkg/mock"
	"github.com/JPFrancoia/openScale/pkg/profile"
	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/JPFrancoia/openScale/pkg/vitalink"
	"github.com/sirupsen/logrus"
)

type config struct {
	deviceID   string
	deviceName string

	profileName  string
	profilesFile string
	unit         string

	apiEndpoint string
	mock        bool
	debug       bool
}

var log = logrus.New()

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() (err error) {

	// Parse command line options
	var (
		cfg       config
		s         scale.Scale
		mockScale *mock.Mock
	)

	flag.StringVar(&cfg.deviceID, "device-id", "", "ID of remote peripheral (MAC on Linux, UUID on OS X)")
	flag.StringVar(&cfg.deviceName, "device-name", "", "name of remote peripheral")
	flag.StringVar(&cfg.profileName, "profile", "", "name or ID of the user profile to weigh (default: active profile)")
	flag.StringVar(&cfg.profilesFile, "profiles-file", "", "path to the profile store (default: OS config directory)")
	flag.StringVar(&cfg.unit, "unit", "", "display unit (kg / lb / st)")
	flag.StringVar(&cfg.apiEndpoint, "api", "", "endpoint to serve the REST API on, e.g. localhost:8080 (default: off)")
	flag.BoolVar(&cfg.mock, "mock", false, "use a simulated scale instead of a bluetooth device")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	if cfg.debug {
		log.SetLevel(logrus.DebugLevel)
	}

	// Resolve the user profile to weigh
	profilesFile := cfg.profilesFile
	if profilesFile == "" {
		if profilesFile, err = profile.DefaultPath(); err != nil {
			return err
		}
	}
	store, err := profile.Load(profilesFile)
	if err != nil {
		return err
	}

	user, ok := store.Active()
	if cfg.profileName != "" {
		if user, ok = store.Get(cfg.profileName); !ok {
			return fmt.Errorf("unknown profile: %s", cfg.profileName)
		}
	}
	if !ok {
		log.Warnf("No user profile configured, weighing as guest (add profiles to %s)", profilesFile)
		user = scale.UserProfile{ID: "guest", Name: "Guest", Age: 30, HeightCm: 170.}
	}
	log.Infof("Weighing user `%s`", user.Name)

	// Initialize the scale
	if cfg.mock {
		if mockScale, err = mock.New(mock.WithUserProfile(user)); err != nil {
			return fmt.Errorf("failed to initialize mock scale: %s", err)
		}
		s = mockScale
	} else {
		options := []func(*vitalink.VitaLink){
			vitalink.WithUserProfile(user),
			vitalink.WithLogger(scale.NewDefaultLogger(cfg.debug)),
		}
		if cfg.deviceID != "" {
			options = append(options, vitalink.WithDeviceID(cfg.deviceID))
		}
		if cfg.deviceName != "" {
			options = append(options, vitalink.WithDeviceName(cfg.deviceName))
		}

		if s, err = vitalink.New(options...); err != nil {
			return fmt.Errorf("failed to initialize VitaLink scale: %s", err)
		}
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			err = cerr
			return
		}
	}()

	if cfg.unit != "" {
		unit, perr := scale.ParseUnit(cfg.unit)
		if perr != nil {
			return perr
		}
		if err := s.SetUnit(unit); err != nil {
			return err
		}
	}

	s.SetPromptHandler(func(p scale.Prompt) {
		switch p {
		case scale.PromptStepOnAssisted:
			log.Infof("Please step on the scale holding the person being weighed")
		default:
			log.Infof("Please step on the scale")
		}
	})
	s.SetMeasurementHandler(func(m scale.Measurement) {
		log.Infof("Measurement: %.2f %s (fat %.1f%%, water %.1f%%, muscle %.1f%%, bone %.2f kg, impedance %.1f) after %v",
			m.Unit.FromKg(m.Weight), m.Unit, m.FatPercent, m.WaterPercent, m.MusclePercent, m.BoneMassKg, m.Impedance, m.Elapsed)
	})

	stateChan := make(chan scale.ConnectionStatus, 16)
	s.SetStateChangeChannel(stateChan)
	go func() {
		for st := range stateChan {
			log.Debugf("State change: %v", st)
		}
	}()

	// Serve the REST API, if requested
	if cfg.apiEndpoint != "" {
		api.New(s, cfg.apiEndpoint)
		log.Infof("Serving REST API on %s", cfg.apiEndpoint)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)

	if cfg.mock {
		if err := mockScale.Weigh(); err != nil {
			return err
		}
		if cfg.apiEndpoint == "" {
			return nil
		}
		log.Infof("Mock session complete, keeping API alive (Ctrl-C to terminate)")
	}

	<-sigChan
	log.Infof("Got signal, terminating connection to device")

	return nil
}
