// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cfg

import "fmt"

const (
	VolfilePathOrServerRequiredError = "exactly one of volfile.path or volfile.server-host must be set"
	MatrixCacheSizeInvalidValueError = "graph.matrix-cache-size can't be negative"
	RevalCountInvalidValueError      = "graph.reval-count must be at least 1"
	MaxSymlinkDepthInvalidValueError = "graph.max-symlink-depth must be at least 1"
)

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}

func isValidVolfileConfig(c *VolfileConfig) error {
	if (c.Path == "") == (c.ServerHost == "") {
		return fmt.Errorf(VolfilePathOrServerRequiredError)
	}
	return nil
}

func isValidGraphConfig(c *GraphConfig) error {
	if c.MatrixCacheSize < 0 {
		return fmt.Errorf(MatrixCacheSizeInvalidValueError)
	}
	if c.RevalCount < 1 {
		return fmt.Errorf(RevalCountInvalidValueError)
	}
	if c.MaxSymlinkDepth < 1 {
		return fmt.Errorf(MaxSymlinkDepthInvalidValueError)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	var err error

	if err = isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err = isValidVolfileConfig(&config.Volfile); err != nil {
		return fmt.Errorf("error parsing volfile config: %w", err)
	}

	if err = isValidGraphConfig(&config.Graph); err != nil {
		return fmt.Errorf("error parsing graph config: %w", err)
	}

	return nil
}
