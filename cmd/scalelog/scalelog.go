package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JPFrancoia/openScale/pkg/mock"
	"github.com/JPFrancoia/openScale/pkg/profile"
	"github.com/JPFrancoia/openScale/pkg/scale"
	"github.com/JPFrancoia/openScale/pkg/vitalink"
	"github.com/sirupsen/logrus"
)

const (
	formatCSV   = "csv"
	formatJSONL = "jsonl"

	csvHeader = "id,user_id,timestamp,elapsed_s,unit,weight_kg,impedance,fat_percent,water_percent,muscle_percent,bone_mass_kg\n"
)

type config struct {
	deviceID   string
	deviceName string

	profileName  string
	profilesFile string

	out    string
	format string
	mock   bool
	debug  bool
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
	flag.StringVar(&cfg.out, "out", "measurements.csv", "file measurements are appended to")
	flag.StringVar(&cfg.format, "format", formatCSV, "output format (csv / jsonl)")
	flag.BoolVar(&cfg.mock, "mock", false, "use a simulated scale instead of a bluetooth device")
	flag.BoolVar(&cfg.debug, "debug", false, "enable debug logging")
	flag.Parse()

	if cfg.debug {
		log.SetLevel(logrus.DebugLevel)
	}
	if cfg.format != formatCSV && cfg.format != formatJSONL {
		return fmt.Errorf("unknown output format: %s", cfg.format)
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

	// Open the output file, emitting the CSV header on first use
	outFile, err := os.OpenFile(cfg.out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %s", err)
	}
	defer func() {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = cerr
			return
		}
	}()

	if cfg.format == formatCSV {
		stat, serr := outFile.Stat()
		if serr != nil {
			return serr
		}
		if stat.Size() == 0 {
			if _, err := outFile.WriteString(csvHeader); err != nil {
				return err
			}
		}
	}

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
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
			return
		}
	}()

	measurementChan := make(chan scale.Measurement, 256)
	s.SetMeasurementChannel(measurementChan)

	stateChan := make(chan scale.ConnectionStatus, 16)
	s.SetStateChangeChannel(stateChan)
	go func() {
		for st := range stateChan {
			log.Debugf("State change: %v", st)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)

	if cfg.mock {
		go func() {
			if err := mockScale.Weigh(); err != nil {
				log.Errorf("Failed to run mock weighing session: %s", err)
			}
		}()
	}

	log.Infof("Logging measurements to %s (Ctrl-C to terminate)", cfg.out)
	for {
		select {
		case m := <-measurementChan:
			if err := writeMeasurement(outFile, cfg.format, m); err != nil {
				return err
			}
			log.Infof("Logged measurement: %.2f kg for user %s", m.Weight, m.UserID)
		case <-sigChan:
			log.Infof("Got signal, terminating connection to device")
			return nil
		}
	}
}

func writeMeasurement(w io.Writer, format string, m scale.Measurement) error {

	if format == formatJSONL {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}

	_, err := fmt.Fprintf(w, "%s,%s,%s,%.1f,%s,%.2f,%.1f,%.2f,%.2f,%.2f,%.2f\n",
		m.ID, m.UserID, m.TimeStamp.Format(time.RFC3339), m.Elapsed.Seconds(), m.Unit,
		m.Weight, m.Impedance, m.FatPercent, m.WaterPercent, m.MusclePercent, m.BoneMassKg)

	return err
}
