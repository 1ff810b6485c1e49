// Copyright 2024 Google LLC
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

import "runtime"

// DefaultSyncopWorkers sizes the normal-priority synctask pool off the
// machine's core count, the same heuristic the teacher uses for its
// download-parallelism default.
func DefaultSyncopWorkers() int {
	return max(16, 2*runtime.NumCPU())
}

// UsesLocalVolfile reports whether the config loads its translator
// graph from a local file rather than polling a volfile server.
func UsesLocalVolfile(config *Config) bool {
	return config.Volfile.Path != ""
}
