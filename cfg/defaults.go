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

import "time"

// GetDefaultLoggingConfig returns the default configuration that is to
// be used during application startup, before any provided
// configuration has been parsed.
func GetDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Severity: InfoLogSeverity,
		Format:   "text",
		LogRotate: LogRotateLoggingConfig{
			BackupFileCount: 10,
			Compress:        true,
			MaxFileSizeMb:   512,
		},
	}
}

// GetDefaultGraphConfig returns the default graph/resolver/erasure
// tuning used before any provided configuration has been parsed.
func GetDefaultGraphConfig() GraphConfig {
	return GraphConfig{
		MatrixCacheSize: DefaultMatrixCacheSize,
		SyncopWorkers:   DefaultSyncopWorkers(),
		PriorityWorkers: DefaultPriorityWorkers,
		RevalCount:      DefaultRevalCount,
		MaxSymlinkDepth: DefaultMaxSymlinkDepth,
	}
}

// DefaultVolfileFetchInterval is how often the volfile server is
// polled for a new graph generation once connected.
const DefaultVolfileFetchInterval = 3 * time.Minute
