// Copyright 2015 Google Inc. All Rights Reserved.
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

package client

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/distfs/govfs/common"
	"github.com/distfs/govfs/graph"
	"github.com/distfs/govfs/internal/logger"
)

// statedump is the YAML document Sysrq('S') renders (spec §2.5: "graph
// generations, winds counters, open FD count, task queue depth, statedump
// counters").
type statedump struct {
	Volname string `yaml:"volname"`

	Graphs struct {
		Active    *graph.GraphSnapshot `yaml:"active,omitempty"`
		Next      *graph.GraphSnapshot `yaml:"next,omitempty"`
		Migrating *graph.GraphSnapshot `yaml:"migrating,omitempty"`
		Old       *graph.GraphSnapshot `yaml:"old,omitempty"`
	} `yaml:"graphs"`

	OpenFDCount int   `yaml:"open-fd-count"`
	TaskQueue   int64 `yaml:"task-queue-depth"`

	Counters logger.CounterSnapshot `yaml:"counters"`
}

// Sysrq implements the spec §6 debug entry points sysrq('H'|'S'):
// 'S' renders a statedump to path and returns its YAML text;
// 'H' is reserved for a future health-check rendering and currently
// returns an error, since nothing in SPEC_FULL.md names its content yet.
func (fs *Fs) Sysrq(cmd rune, path string) (string, error) {
	switch cmd {
	case 'S':
		return fs.renderStatedump(path)
	default:
		return "", fmt.Errorf("client: sysrq %q not implemented", cmd)
	}
}

func (fs *Fs) renderStatedump(path string) (string, error) {
	var d statedump
	d.Volname = fs.volname

	active, next, migrating, old := fs.graphs.Snapshot()
	d.Graphs.Active = active
	d.Graphs.Next = next
	d.Graphs.Migrating = migrating
	d.Graphs.Old = old

	fs.mu.Lock()
	d.OpenFDCount = len(fs.openFDs)
	fs.mu.Unlock()

	d.TaskQueue = fs.pool.InFlight()
	d.Counters = logger.DefaultCounters.Snapshot()

	out, err := yaml.Marshal(&d)
	if err != nil {
		return "", fmt.Errorf("client: marshal statedump: %w", err)
	}
	if path != "" {
		if err := common.WriteFile(path, out); err != nil {
			return "", fmt.Errorf("client: write statedump: %w", err)
		}
	}
	return string(out), nil
}
