package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/raterudder/semsledger/pkg/log"
	"github.com/raterudder/semsledger/pkg/refresh"
	"github.com/raterudder/semsledger/pkg/sems"
	"github.com/raterudder/semsledger/pkg/server"
)

func main() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// init packages
	session := sems.Configured()
	poller := refresh.Configured(session, reg)

	// init server
	srv := server.Configured(poller, reg)

	once := lflag.Bool("once", false, "Run a single refresh cycle, print it as JSON and exit")
	listStations := lflag.Bool("list-stations", false, "Print the stations visible to the account as JSON and exit")

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}

	log.SetDefaultLogLevel(level)
	slog.SetDefault(log.Ctx(context.Background()))
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defer func() {
		if err := session.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close sems session", slog.Any("error", err))
		}
	}()

	switch {
	case *listStations:
		stations, err := sems.NewFetcher(session).ListStations(ctx)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to list stations", slog.Any("error", err))
			os.Exit(1)
		}
		printJSON(stations)
		return
	case *once:
		res, err := poller.Refresh(ctx)
		printJSON(res)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "refresh failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	if srv.Enabled() {
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "semsledger failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "semsledger exited cleanly")
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to write output", slog.Any("error", err))
	}
}
