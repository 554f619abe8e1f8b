package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// CurrentSettingsVersion is the current version of the settings file format.
// Increment this value when adding new fields that require default values.
const CurrentSettingsVersion = 2

// Credentials identify the SEMS account and the station being monitored.
// They are immutable for the lifetime of the process.
type Credentials struct {
	Account   string `json:"account"`
	Password  string `json:"-"`
	StationID string `json:"stationID"`
}

// Validate reports missing credentials. A missing value is a configuration
// problem and never a network error.
func (c Credentials) Validate() error {
	var missing []string
	if c.Account == "" {
		missing = append(missing, "account")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}
	if c.StationID == "" {
		missing = append(missing, "station id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing sems credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Settings represents the tariff and battery configuration used when
// aggregating a day.
type Settings struct {
	Tariff Tariff `json:"tariff"`

	// Usable battery capacity, used to convert SOC into stored energy.
	BatteryCapacityKWH float64 `json:"batteryCapacityKWH"`
	// The SOC floor the inverter keeps in reserve (in %).
	MinBatterySOC float64 `json:"minBatterySOC"`

	// IANA timezone of the station, which defines the calendar day.
	Timezone string `json:"timezone"`

	PollInterval time.Duration `json:"pollInterval"`
	// Gaps between chart samples longer than this are clamped when
	// integrating. 0 disables clamping.
	MaxIntervalGap time.Duration `json:"maxIntervalGap"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	s, _, _ := MigrateSettings(Settings{}, 0)
	return s
}

// MigrateSettings migrates the settings to the current version.
// It returns the migrated settings, a boolean indicating if changes were made, and an error if migration failed.
func MigrateSettings(s Settings, currentVersion int) (Settings, bool, error) {
	if currentVersion >= CurrentSettingsVersion {
		return s, false, nil
	}

	migrated := false
	for version := currentVersion + 1; version <= CurrentSettingsVersion; version++ {
		switch version {
		case 1:
			// version 1: initial
			if s.Tariff.ConsumptionCentsPerKWH.IsZero() {
				s.Tariff.ConsumptionCentsPerKWH = decimal.RequireFromString("26.18")
				migrated = true
			}
			if s.Tariff.FeedInCentsPerKWH.IsZero() {
				s.Tariff.FeedInCentsPerKWH = decimal.RequireFromString("5.0")
				migrated = true
			}
			if s.BatteryCapacityKWH == 0 {
				s.BatteryCapacityKWH = 44.8
				migrated = true
			}
			if s.Timezone == "" {
				s.Timezone = "Australia/Brisbane"
				migrated = true
			}
			if s.PollInterval == 0 {
				s.PollInterval = 5 * time.Minute
				migrated = true
			}
		case 2:
			// version 2: clamp long gaps between samples
			if s.MaxIntervalGap == 0 {
				s.MaxIntervalGap = 30 * time.Minute
				migrated = true
			}
		default:
			return s, migrated, fmt.Errorf("unknown settings version: %d", version)
		}
	}
	return s, migrated, nil
}

// Validate checks the settings for values that would silently corrupt totals.
func (s Settings) Validate() error {
	if s.Tariff.ConsumptionCentsPerKWH.IsNegative() {
		return errors.New("consumption tariff cannot be negative")
	}
	if s.Tariff.FeedInCentsPerKWH.IsNegative() {
		return errors.New("feed-in tariff cannot be negative")
	}
	if s.BatteryCapacityKWH < 0 {
		return errors.New("battery capacity cannot be negative")
	}
	if s.MinBatterySOC < 0 || s.MinBatterySOC > 100 {
		return fmt.Errorf("min battery soc must be between 0 and 100: %v", s.MinBatterySOC)
	}
	if s.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if s.MaxIntervalGap < 0 {
		return errors.New("max interval gap cannot be negative")
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location loads the station timezone.
func (s Settings) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone (%s): %w", s.Timezone, err)
	}
	return loc, nil
}

// settingsFile mirrors Settings as it is written in YAML. Decimal values are
// kept as strings so "26.18" is never routed through a float.
type settingsFile struct {
	Version            int           `yaml:"version"`
	ConsumptionTariff  string        `yaml:"consumption_tariff,omitempty"`
	FeedInTariff       string        `yaml:"feed_in_tariff,omitempty"`
	BatteryCapacityKWH float64       `yaml:"battery_capacity_kwh,omitempty"`
	MinBatterySOC      float64       `yaml:"min_battery_soc,omitempty"`
	Timezone           string        `yaml:"timezone,omitempty"`
	PollInterval       time.Duration `yaml:"poll_interval,omitempty"`
	MaxIntervalGap     time.Duration `yaml:"max_interval_gap,omitempty"`
}

// ParseSettingsYAML decodes a settings file and migrates it to the current
// version so missing fields pick up their defaults.
func ParseSettingsYAML(b []byte) (Settings, error) {
	var f settingsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings yaml: %w", err)
	}

	s := Settings{
		BatteryCapacityKWH: f.BatteryCapacityKWH,
		MinBatterySOC:      f.MinBatterySOC,
		Timezone:           f.Timezone,
		PollInterval:       f.PollInterval,
		MaxIntervalGap:     f.MaxIntervalGap,
	}
	var err error
	if f.ConsumptionTariff != "" {
		s.Tariff.ConsumptionCentsPerKWH, err = decimal.NewFromString(f.ConsumptionTariff)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid consumption_tariff (%s): %w", f.ConsumptionTariff, err)
		}
	}
	if f.FeedInTariff != "" {
		s.Tariff.FeedInCentsPerKWH, err = decimal.NewFromString(f.FeedInTariff)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid feed_in_tariff (%s): %w", f.FeedInTariff, err)
		}
	}

	s, _, err = MigrateSettings(s, f.Version)
	if err != nil {
		return Settings{}, err
	}
	return s, nil
}
