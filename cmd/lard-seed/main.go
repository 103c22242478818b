// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command lard-seed is the Bulk Seeder (C9): an offline CLI that wipes
// and reapplies the schema, then synthesises and bulk-loads a large
// random dataset for load testing, mirroring
// original_source/fake_data_generator's "host user dbname [password]"
// positional convention.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/metno/lard/internal/config"
	"github.com/metno/lard/internal/seed"
	"github.com/metno/lard/internal/storage"
	"github.com/metno/lard/pkg/log"
	"github.com/metno/lard/pkg/runtimeEnv"
)

func main() {
	var flagEnvFile, flagUser, flagGroup string
	var flagNumSeries, flagMeanLength int
	flag.StringVar(&flagEnvFile, "env", "./.env", "path to a .env file of connection strings")
	flag.StringVar(&flagUser, "user", "", "drop privileges to this user before seeding")
	flag.StringVar(&flagGroup, "group", "", "drop privileges to this group before seeding")
	flag.IntVar(&flagNumSeries, "num-series", 0, "number of synthetic series to generate (0 = default)")
	flag.IntVar(&flagMeanLength, "mean-length", 0, "mean number of observations per series (0 = default)")
	flag.Parse()

	if err := godotenv.Load(flagEnvFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("loading %q failed: %s", flagEnvFile, err.Error())
	}

	var connString string
	switch flag.NArg() {
	case 0:
		connString = os.Getenv("LARD_CONN_STRING")
	case 3:
		connString = config.FromPositional(flag.Arg(0), flag.Arg(1), flag.Arg(2), "")
	case 4:
		connString = config.FromPositional(flag.Arg(0), flag.Arg(1), flag.Arg(2), flag.Arg(3))
	default:
		fmt.Fprintln(os.Stderr, "usage: lard-seed [flags] [host user dbname [password]]")
		os.Exit(2)
	}
	if connString == "" {
		log.Fatalf("no connection string: set LARD_CONN_STRING or pass host user dbname [password]")
	}

	if flagUser != "" || flagGroup != "" {
		if err := runtimeEnv.DropPrivileges(flagUser, flagGroup); err != nil {
			log.Fatalf("dropping privileges: %s", err.Error())
		}
	}

	ctx := context.Background()
	st, err := storage.Open(ctx, connString, storage.Options{MaxConns: 10, MinConns: 2})
	if err != nil {
		log.Fatalf("opening storage: %s", err.Error())
	}
	defer st.Close()

	params := seed.DefaultParams()
	if flagNumSeries > 0 {
		params.NumSeries = flagNumSeries
	}
	if flagMeanLength > 0 {
		params.MeanSeriesLength = flagMeanLength
	}
	params.Now = time.Now().UTC()
	params.PartitionsThroughYear = params.Now.Year() + 1

	if err := seed.Run(ctx, st.Pool, connString, params); err != nil {
		log.Fatalf("seeding failed: %s", err.Error())
	}
}
