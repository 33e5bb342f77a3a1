/* Copyright 2025 Leafsync Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cmd

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/fasalvaidya/leafsync/pkg/server/app"
	"github.com/fasalvaidya/leafsync/pkg/server/config"
	"github.com/fasalvaidya/leafsync/pkg/server/controllers"
	"github.com/fasalvaidya/leafsync/pkg/server/database"
	"github.com/fasalvaidya/leafsync/pkg/server/log"
	"github.com/pkg/errors"
)

func setupFlagSet(name, usage string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Printf(`Usage:
  %s [flags]

Flags:
`, usage)
		fs.PrintDefaults()
	}

	return fs
}

func initApp(cfg config.Config) (*app.App, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := database.InitSchema(db); err != nil {
		return nil, errors.Wrap(err, "initializing schema")
	}

	return &app.App{
		DB:     db,
		Clock:  clock.New(),
		Config: cfg,
	}, nil
}

func startCmd(args []string) {
	fs := setupFlagSet("start", "leafsync-server start")

	port := fs.String("port", "", "Server port (env: PORT, default: 3001)")
	databaseURL := fs.String("databaseUrl", "", "Database DSN: a postgres:// URL or a SQLite file path (env: DATABASE_URL)")
	logLevel := fs.String("logLevel", "", "Log level: debug, info, warn, or error (env: LOG_LEVEL, default: info)")

	fs.Parse(args)

	config.LoadDotEnv()

	cfg, err := config.New(config.Params{
		Port:        *port,
		DatabaseURL: *databaseURL,
		LogLevel:    *logLevel,
	})
	if err != nil {
		fmt.Printf("Error: %s\n\n", err)
		fs.Usage()
		os.Exit(1)
	}

	log.SetLevel(cfg.LogLevel)

	a, err := initApp(cfg)
	if err != nil {
		log.ErrorWrap(err, "initializing app")
		os.Exit(1)
	}
	defer func() {
		sqlDB, err := a.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}()

	router, err := controllers.NewRouter(a, controllers.New(a))
	if err != nil {
		log.ErrorWrap(err, "initializing router")
		os.Exit(1)
	}

	log.WithFields(log.Fields{
		"version": Version,
		"port":    cfg.Port,
	}).Info("Leafsync server starting")

	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), router); err != nil {
		log.ErrorWrap(err, "server failed")
		os.Exit(1)
	}
}
