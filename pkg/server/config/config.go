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

// Package config provides the configuration for the server
package config

import (
	"os"

	"github.com/fasalvaidya/leafsync/pkg/server/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Config holds the application configuration
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	LogLevel    string
}

// Params holds the parameters for initializing a config. Any zero value
// falls back to the corresponding environment variable.
type Params struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	LogLevel    string
}

// getOrEnv returns the given value if it is non-empty, and otherwise
// looks up the named environment variable.
func getOrEnv(val, envName string) string {
	if val != "" {
		return val
	}

	return os.Getenv(envName)
}

// LoadDotEnv loads environment variables from a .env file if one exists
// in the working directory. A missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.WithFields(log.Fields{"err": err.Error()}).Debug("no .env file loaded")
	}
}

// New constructs a config using the given params
func New(p Params) (Config, error) {
	c := Config{
		AppEnv:      getOrEnv(p.AppEnv, "APP_ENV"),
		Port:        getOrEnv(p.Port, "PORT"),
		DatabaseURL: getOrEnv(p.DatabaseURL, "DATABASE_URL"),
		LogLevel:    getOrEnv(p.LogLevel, "LOG_LEVEL"),
	}

	if c.Port == "" {
		c.Port = "3001"
	}
	if c.LogLevel == "" {
		c.LogLevel = log.LevelInfo
	}

	if err := c.validate(); err != nil {
		return Config{}, errors.Wrap(err, "validating config")
	}

	return c, nil
}

func (c Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is empty")
	}

	return nil
}

// IsProd checks if the app environment is production
func (c Config) IsProd() bool {
	return c.AppEnv == "PRODUCTION"
}
