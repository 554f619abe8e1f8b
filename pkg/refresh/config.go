package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/sems"
	"github.com/raterudder/semsledger/pkg/types"
)

// settingsOverrides are the settings given as flags. Empty strings and zero
// durations mean the flag was not set.
type settingsOverrides struct {
	consumptionTariff  string
	feedInTariff       string
	batteryCapacityKWH string
	minBatterySOC      string
	timezone           string
	pollInterval       time.Duration
	maxIntervalGap     string
}

// loadSettings applies defaults, then the settings file if any, then flags.
func loadSettings(file string, o settingsOverrides) (types.Settings, error) {
	s := types.DefaultSettings()
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return types.Settings{}, fmt.Errorf("failed to read settings file: %w", err)
		}
		s, err = types.ParseSettingsYAML(b)
		if err != nil {
			return types.Settings{}, err
		}
	}
	return applyOverrides(s, o)
}

func applyOverrides(s types.Settings, o settingsOverrides) (types.Settings, error) {
	var err error
	if o.consumptionTariff != "" {
		s.Tariff.ConsumptionCentsPerKWH, err = decimal.NewFromString(o.consumptionTariff)
		if err != nil {
			return types.Settings{}, fmt.Errorf("invalid consumption-tariff (%s): %w", o.consumptionTariff, err)
		}
	}
	if o.feedInTariff != "" {
		s.Tariff.FeedInCentsPerKWH, err = decimal.NewFromString(o.feedInTariff)
		if err != nil {
			return types.Settings{}, fmt.Errorf("invalid feed-in-tariff (%s): %w", o.feedInTariff, err)
		}
	}
	if o.batteryCapacityKWH != "" {
		s.BatteryCapacityKWH, err = strconv.ParseFloat(o.batteryCapacityKWH, 64)
		if err != nil {
			return types.Settings{}, fmt.Errorf("invalid battery-capacity-kwh (%s): %w", o.batteryCapacityKWH, err)
		}
	}
	if o.minBatterySOC != "" {
		s.MinBatterySOC, err = strconv.ParseFloat(o.minBatterySOC, 64)
		if err != nil {
			return types.Settings{}, fmt.Errorf("invalid min-battery-soc (%s): %w", o.minBatterySOC, err)
		}
	}
	if o.timezone != "" {
		s.Timezone = o.timezone
	}
	if o.pollInterval != 0 {
		s.PollInterval = o.pollInterval
	}
	if o.maxIntervalGap != "" {
		s.MaxIntervalGap, err = time.ParseDuration(o.maxIntervalGap)
		if err != nil {
			return types.Settings{}, fmt.Errorf("invalid max-interval-gap (%s): %w", o.maxIntervalGap, err)
		}
	}
	if err := s.Validate(); err != nil {
		return types.Settings{}, err
	}
	return s, nil
}

// Configured registers the settings flags and returns a poller for session's
// station that is set up once lflag.Configure is called. The session must be
// configured before this is called.
func Configured(session *sems.Session, reg prometheus.Registerer) *Poller {
	file := lflag.String("settings-file", "", "YAML file with tariff and battery settings")
	consumptionTariff := lflag.String("consumption-tariff", "", "Consumption tariff in cents per kWh (default 26.18)")
	feedInTariff := lflag.String("feed-in-tariff", "", "Feed-in tariff in cents per kWh (default 5.0)")
	batteryCapacity := lflag.String("battery-capacity-kwh", "", "Usable battery capacity in kWh (default 44.8)")
	minBatterySOC := lflag.String("min-battery-soc", "", "Battery SOC floor in percent (default 0)")
	timezone := lflag.String("timezone", "", "Station timezone (default Australia/Brisbane)")
	pollInterval := lflag.Duration("poll-interval", 0, "How often to refresh (default 5m)")
	maxIntervalGap := lflag.String("max-interval-gap", "", "Longest gap between chart samples integrated as constant power, 0 disables (default 30m)")

	p := &Poller{}
	lflag.Do(func() {
		o := settingsOverrides{
			consumptionTariff:  *consumptionTariff,
			feedInTariff:       *feedInTariff,
			batteryCapacityKWH: *batteryCapacity,
			minBatterySOC:      *minBatterySOC,
			timezone:           *timezone,
			pollInterval:       *pollInterval,
			maxIntervalGap:     *maxIntervalGap,
		}
		settings, err := loadSettings(*file, o)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid settings", slog.Any("error", err))
			os.Exit(1)
		}
		r, err := NewRefresher(sems.NewFetcher(session), session.StationID(), settings, NewMetrics(reg))
		if err != nil {
			log.Ctx(context.Background()).Error("failed to create refresher", slog.Any("error", err))
			os.Exit(1)
		}
		p.init(r, settings.PollInterval)
	})
	return p
}
