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

package graph

import (
	"context"
	"crypto/sha1"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jacobsa/timeutil"
	"gopkg.in/yaml.v3"

	"github.com/distfs/govfs/cfg"
)

// Doc is the textual description of a client-side translator graph
// (spec §3), a YAML document naming the translator stack. Leaf
// translator bodies (replication, distribution, erasure-coding brick
// fan-out) are an explicit non-goal of this module's scope; Doc only
// carries enough to build the NullFS placeholder and to detect when
// the server has published a new generation.
type Doc struct {
	Translators []TranslatorSpec `yaml:"translators"`
}

type TranslatorSpec struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// ParseVolfile decodes a volfile document and builds the Translator
// stack it names. Any translator type parses syntactically (so real
// volfiles naming brick/replication/erasure translators don't fail to
// load) but resolves to a NullFS placeholder, since this module's
// scope stops at the Translator capability interface.
func ParseVolfile(data []byte) (*Doc, Translator, error) {
	var doc Doc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("graph: parsing volfile: %w", err)
	}
	if len(doc.Translators) == 0 {
		return nil, nil, fmt.Errorf("graph: volfile names no translators")
	}
	return &doc, NewNullFS(), nil
}

// FetchFunc retrieves the current volfile bytes, either from a local
// path (cfg.VolfileConfig.Path) or from a volfile server connection.
type FetchFunc func(ctx context.Context) ([]byte, error)

// LocalFileFetcher reads the volfile from disk, for cfg.VolfileConfig.Path
// deployments that bypass the volfile server poll path entirely.
func LocalFileFetcher(path string) FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return os.ReadFile(path)
	}
}

// Poller periodically fetches the volfile and stages a new Graph
// generation into a Set whenever its content changes, following spec
// §4.4's "Staged -> Next on GraphNew notification". Grounded on
// gcsproxy/listing_proxy.go's generation-conflict retry loop,
// generalized from listing-generation tracking to volfile-content
// tracking. clk is used the way the teacher uses timeutil.Clock
// everywhere else in this module (fs.go's monotonicNow): a
// fake-clock-testable Now(), not a ticker source -- timeutil.Clock
// has no After method, so the poll cadence itself is a plain
// time.Ticker.
type Poller struct {
	fetch    FetchFunc
	interval time.Duration
	clk      timeutil.Clock
	set      *Set
	log      *slog.Logger

	lastDigest [sha1.Size]byte
	generation uint64
}

// NewPoller builds a poller that stages new generations into set.
func NewPoller(fetch FetchFunc, c cfg.VolfileConfig, clk timeutil.Clock, set *Set, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		fetch:    fetch,
		interval: c.FetchInterval,
		clk:      clk,
		set:      set,
		log:      log,
	}
}

// PollOnce fetches the volfile once, staging a new generation on the
// set if the content digest differs from the last one observed. It is
// exported separately from Run so a first graph can be staged and
// promoted synchronously before a background poll loop starts.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	data, err := p.fetch(ctx)
	if err != nil {
		return false, fmt.Errorf("graph: fetching volfile: %w", err)
	}

	digest := sha1.Sum(data)
	if digest == p.lastDigest && p.generation > 0 {
		return false, nil
	}

	_, top, err := ParseVolfile(data)
	if err != nil {
		return false, err
	}

	p.generation++
	g := New(p.generation, top)
	p.set.Stage(g)
	p.lastDigest = digest

	p.log.Info("volfile changed, staged new graph generation", "generation", p.generation, "graph", g.UUID)
	return true, nil
}

// Run polls at the configured fetch interval until ctx is cancelled,
// staging a new generation each time the volfile content changes.
// Fetch/parse errors are logged and retried on the next tick rather
// than stopping the loop, since a transient volfile-server outage
// should not prevent the already-active graph from continuing to
// serve. Callers still run Set.Promote themselves (directly, or via
// the Fs layer's active-graph-access path per spec §4.4); Run only
// stages.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				p.log.Warn("volfile poll failed", "err", err, "polled_at", p.clk.Now())
			}
		}
	}
}
