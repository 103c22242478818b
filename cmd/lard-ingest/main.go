// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command lard-ingest serves POST /kldata (C4-C6) and drains the XML
// flag stream (C7), wired the way cmd/cc-backend/main.go assembles and
// runs its server: flag parsing, optional gops agent, graceful
// SIGINT/SIGTERM shutdown, systemd readiness notification.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/joho/godotenv"
	"github.com/metno/lard/internal/config"
	"github.com/metno/lard/internal/httpapi"
	"github.com/metno/lard/internal/ingestwriter"
	"github.com/metno/lard/internal/kvstream"
	"github.com/metno/lard/internal/labelresolver"
	"github.com/metno/lard/internal/paramreg"
	"github.com/metno/lard/internal/permit"
	"github.com/metno/lard/internal/storage"
	"github.com/metno/lard/pkg/bus"
	"github.com/metno/lard/pkg/log"
	"github.com/metno/lard/pkg/runtimeEnv"
)

func main() {
	var flagConfigFile, flagEnvFile string
	var flagGops, flagMigrate, flagNoStream bool
	flag.StringVar(&flagConfigFile, "config", "", "path to a JSON file of operational overrides")
	flag.StringVar(&flagEnvFile, "env", "./.env", "path to a .env file of connection strings")
	flag.BoolVar(&flagGops, "gops", false, "listen via github.com/google/gops/agent (for debugging)")
	flag.BoolVar(&flagMigrate, "migrate", false, "apply schema migrations on startup before serving")
	flag.BoolVar(&flagNoStream, "no-stream", false, "do not start the XML flag stream consumer")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := godotenv.Load(flagEnvFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading %q failed: %s", flagEnvFile, err.Error())
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		log.Fatalf("loading configuration: %s", err.Error())
	}
	log.SetLogLevel(cfg.LogLevel)
	log.SetLogDateTime(cfg.LogDate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := storage.Open(ctx, cfg.LardConnString, storage.Options{
		MaxConns: int32(cfg.PoolMaxConns),
		MinConns: int32(cfg.PoolMinConns),
	})
	if err != nil {
		log.Fatalf("opening storage: %s", err.Error())
	}
	defer st.Close()

	if flagMigrate {
		if err := storage.Migrate(cfg.LardConnString, false); err != nil {
			log.Fatalf("applying migrations: %s", err.Error())
		}
	}

	reg, err := paramreg.Load(cfg.ParamConversionPath)
	if err != nil {
		log.Fatalf("loading parameter registry: %s", err.Error())
	}
	log.Infof("lard-ingest: loaded %d parameter codes", reg.Len())

	stinfo, err := storage.Open(ctx, cfg.StinfoConnString, storage.Options{MaxConns: 2})
	if err != nil {
		log.Fatalf("opening stinfo storage: %s", err.Error())
	}
	defer stinfo.Close()

	permits, err := permit.New(ctx, stinfo.Pool)
	if err != nil {
		log.Fatalf("loading permit cache: %s", err.Error())
	}
	refreshInterval := time.Duration(cfg.PermitRefreshIntervalMinutes) * time.Minute
	if err := permits.StartRefresh(refreshInterval); err != nil {
		log.Fatalf("starting permit cache refresh: %s", err.Error())
	}
	defer permits.Stop()

	resolver := labelresolver.New(st.Pool, reg, permits, 10_000)
	writer := ingestwriter.New(st.Pool)
	ingestAPI := httpapi.NewIngestAPI(reg, resolver, writer)

	server := &http.Server{
		Addr:         cfg.IngestAddr,
		Handler:      ingestAPI.Router(),
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("lard-ingest: HTTP listening at %s", cfg.IngestAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serving HTTP: %s", err.Error())
		}
	}()

	if !flagNoStream && cfg.Stream.Address != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := kvstream.Run(ctx, bus.Config{
				Address:     cfg.Stream.Address,
				Subject:     cfg.Stream.Subject,
				StreamGroup: cfg.Stream.StreamGroup,
			}, st.Pool); err != nil && ctx.Err() == nil {
				log.Errorf("lard-ingest: xml stream consumer stopped: %s", err.Error())
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	runtimeEnv.SystemdNotifiy(true, "running")

	<-sigs
	runtimeEnv.SystemdNotifiy(false, "shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("lard-ingest: graceful shutdown failed: %s", err.Error())
	}

	wg.Wait()
	log.Info("lard-ingest: shutdown complete")
}
