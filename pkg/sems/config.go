package sems

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/semsledger/pkg/common"
	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/types"
)

// Configured registers the sems flags and returns a session that is set up
// once lflag.Configure is called.
func Configured() *Session {
	account := lflag.String("sems-account", "", "SEMS portal account (email)")
	password := lflag.String("sems-password", "", "SEMS portal password")
	stationID := lflag.String("sems-station-id", "", "SEMS power station ID, from the portal URL")
	apiURL := lflag.String("sems-api-url", DefaultBaseURL, "SEMS global API base URL used for logging in")
	timeout := lflag.Duration("sems-timeout", 30*time.Second, "Timeout for each SEMS request")

	s := &Session{}
	lflag.Do(func() {
		creds := types.Credentials{
			Account:   *account,
			Password:  *password,
			StationID: *stationID,
		}
		if err := creds.Validate(); err != nil {
			log.Ctx(context.Background()).Error("invalid sems configuration", slog.Any("error", err))
			os.Exit(1)
		}
		s.init(creds, *apiURL, common.HTTPClient(*timeout, semsUserAgent))
	})
	return s
}
