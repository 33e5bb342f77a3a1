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

// Package infra provides operations and definitions for the
// local infrastructure for leafsync
package infra

import (
	"fmt"

	"github.com/fasalvaidya/leafsync/pkg/cli/client"
	"github.com/fasalvaidya/leafsync/pkg/cli/config"
	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/database"
	"github.com/fasalvaidya/leafsync/pkg/cli/log"
	"github.com/fasalvaidya/leafsync/pkg/cli/utils"
	"github.com/fasalvaidya/leafsync/pkg/clock"
	"github.com/fasalvaidya/leafsync/pkg/dirs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	// DefaultAPIEndpoint is the default API endpoint used when none is configured
	DefaultAPIEndpoint = "http://localhost:3001/api"

	// schemaVersion is the current local schema version
	schemaVersion = 1
)

// RunEFunc is a function type of leafsync commands
type RunEFunc func(*cobra.Command, []string) error

func getDBPath(paths context.Paths, customPath string) string {
	if customPath != "" {
		return customPath
	}

	return fmt.Sprintf("%s/%s/%s", paths.Data, consts.LeafsyncDirName, consts.LeafsyncDBFileName)
}

// newBaseCtx creates a minimal context with paths and database connection.
// This base context is used for file and database initialization before
// being enriched with config values by setupCtx.
func newBaseCtx(versionTag, customDBPath string) (context.LeafCtx, error) {
	paths := context.Paths{
		Home:   dirs.Home,
		Config: dirs.ConfigHome,
		Data:   dirs.DataHome,
		Cache:  dirs.CacheHome,
		Images: fmt.Sprintf("%s/%s/%s", dirs.DataHome, consts.LeafsyncDirName, consts.ImageDirName),
	}

	if err := initDirs(paths); err != nil {
		return context.LeafCtx{}, errors.Wrap(err, "initializing directories")
	}

	dbPath := getDBPath(paths, customDBPath)

	db, err := database.Open(dbPath)
	if err != nil {
		return context.LeafCtx{}, errors.Wrap(err, "connecting to db")
	}

	ctx := context.LeafCtx{
		Paths:   paths,
		Version: versionTag,
		DB:      db,
	}

	return ctx, nil
}

func initDirs(paths context.Paths) error {
	for _, dir := range []string{
		fmt.Sprintf("%s/%s", paths.Config, consts.LeafsyncDirName),
		fmt.Sprintf("%s/%s", paths.Data, consts.LeafsyncDirName),
		paths.Images,
	} {
		if err := utils.EnsureDir(dir); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}

	return nil
}

// Init initializes the leafsync environment and returns a new context.
// apiEndpoint is used when creating a new config file.
func Init(versionTag, apiEndpoint, dbPath string) (*context.LeafCtx, error) {
	ctx, err := newBaseCtx(versionTag, dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "initializing a context")
	}

	if err := config.InitFile(ctx, apiEndpoint); err != nil {
		return nil, errors.Wrap(err, "initializing config file")
	}

	if err := database.InitSchema(ctx.DB); err != nil {
		return nil, errors.Wrap(err, "initializing database")
	}
	if err := InitSystem(ctx); err != nil {
		return nil, errors.Wrap(err, "initializing system data")
	}

	ctx, err = setupCtx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "setting up the context")
	}

	log.Debug("data dir: %s\n", ctx.Paths.Data)

	return &ctx, nil
}

// setupCtx enriches the base context with values from the config file.
// This is called after files and database have been initialized.
func setupCtx(ctx context.LeafCtx) (context.LeafCtx, error) {
	cf, err := config.Read(ctx)
	if err != nil {
		return ctx, errors.Wrap(err, "reading config")
	}

	ret := context.LeafCtx{
		Paths:         ctx.Paths,
		Version:       ctx.Version,
		DB:            ctx.DB,
		APIEndpoint:   cf.APIEndpoint,
		DefaultCrop:   cf.DefaultCrop,
		SyncOnCapture: cf.SyncOnCapture,
		Clock:         clock.New(),
		HTTPClient:    client.NewRateLimitedHTTPClient(),
	}

	return ret, nil
}

// InitSystem populates the system table with initial values
func InitSystem(ctx context.LeafCtx) error {
	var currentVersion int
	ok, err := database.GetSystemOptional(ctx.DB, consts.SystemSchema, &currentVersion)
	if err != nil {
		return errors.Wrap(err, "getting schema version")
	}
	if ok {
		return nil
	}

	if err := database.UpsertSystem(ctx.DB, consts.SystemSchema, schemaVersion); err != nil {
		return errors.Wrap(err, "inserting schema version")
	}

	return nil
}
