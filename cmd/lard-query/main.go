// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command lard-query serves the read-only HTTP query API (C8, C11):
// series lookups, timeslices, and the latest-observation endpoint.
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
	"github.com/metno/lard/internal/querycomposer"
	"github.com/metno/lard/internal/storage"
	"github.com/metno/lard/pkg/log"
	"github.com/metno/lard/pkg/runtimeEnv"
)

func main() {
	var flagConfigFile, flagEnvFile string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "", "path to a JSON file of operational overrides")
	flag.StringVar(&flagEnvFile, "env", "./.env", "path to a .env file of connection strings")
	flag.BoolVar(&flagGops, "gops", false, "listen via github.com/google/gops/agent (for debugging)")
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

	composer := querycomposer.New(st.Pool)
	queryAPI := httpapi.NewQueryAPI(composer)

	server := &http.Server{
		Addr:         cfg.QueryAddr,
		Handler:      queryAPI.Router(),
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Infof("lard-query: HTTP listening at %s", cfg.QueryAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serving HTTP: %s", err.Error())
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	runtimeEnv.SystemdNotifiy(true, "running")

	<-sigs
	runtimeEnv.SystemdNotifiy(false, "shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("lard-query: graceful shutdown failed: %s", err.Error())
	}

	wg.Wait()
	log.Info("lard-query: shutdown complete")
}
