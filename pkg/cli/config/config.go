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

package config

import (
	"fmt"
	"os"

	"github.com/fasalvaidya/leafsync/pkg/cli/consts"
	"github.com/fasalvaidya/leafsync/pkg/cli/context"
	"github.com/fasalvaidya/leafsync/pkg/cli/utils"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config holds leafsync configuration
type Config struct {
	APIEndpoint   string `yaml:"apiEndpoint"`
	DefaultCrop   int    `yaml:"defaultCrop"`
	SyncOnCapture bool   `yaml:"syncOnCapture"`
}

// GetPath returns the path to the leafsync config file
func GetPath(ctx context.LeafCtx) string {
	return fmt.Sprintf("%s/%s/%s", ctx.Paths.Config, consts.LeafsyncDirName, consts.ConfigFilename)
}

// Read reads the config file
func Read(ctx context.LeafCtx) (Config, error) {
	var ret Config

	configPath := GetPath(ctx)
	b, err := os.ReadFile(configPath)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	err = yaml.Unmarshal(b, &ret)
	if err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// Write writes the config to the config file
func Write(ctx context.LeafCtx, cf Config) error {
	path := GetPath(ctx)

	b, err := yaml.Marshal(cf)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}

// InitFile populates a new config file if it does not exist yet
func InitFile(ctx context.LeafCtx, apiEndpoint string) error {
	path := GetPath(ctx)
	if ok, err := utils.FileExists(path); err != nil {
		return errors.Wrap(err, "checking if config exists")
	} else if ok {
		return nil
	}

	cf := Config{
		APIEndpoint:   apiEndpoint,
		DefaultCrop:   1,
		SyncOnCapture: false,
	}

	if err := Write(ctx, cf); err != nil {
		return errors.Wrap(err, "writing config")
	}

	return nil
}
