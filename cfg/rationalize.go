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

// Rationalize updates config fields based on the values of other
// fields, after flags/file/defaults have all been merged and before
// ValidateConfig runs.
func Rationalize(c *Config) error {
	if c.Debug.LogMutex {
		c.Logging.Severity = TraceLogSeverity
	}

	if c.Graph.SyncopWorkers == 0 {
		c.Graph.SyncopWorkers = DefaultSyncopWorkers()
	}
	if c.Graph.PriorityWorkers == 0 {
		c.Graph.PriorityWorkers = DefaultPriorityWorkers
	}
	if c.Graph.RevalCount == 0 {
		c.Graph.RevalCount = DefaultRevalCount
	}
	if c.Graph.MaxSymlinkDepth == 0 {
		c.Graph.MaxSymlinkDepth = DefaultMaxSymlinkDepth
	}

	if c.Volfile.Transport == TransportRDMA {
		// No RDMA transport is built into this module; downgrade rather
		// than fail a mount that would otherwise work fine over TCP.
		c.Volfile.Transport = TransportTCP
	}
	if c.Volfile.Transport == "" {
		c.Volfile.Transport = TransportTCP
	}
	if c.Volfile.FetchInterval == 0 {
		c.Volfile.FetchInterval = DefaultVolfileFetchInterval
	}

	return nil
}
