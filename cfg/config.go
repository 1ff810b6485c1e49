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

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the root configuration object, bound from CLI flags, a
// YAML config file, and defaults, in viper's usual precedence order.
type Config struct {
	AppName string `yaml:"app-name"`

	Debug   DebugConfig   `yaml:"debug"`
	Logging LoggingConfig `yaml:"logging"`
	Volfile VolfileConfig `yaml:"volfile"`
	Graph   GraphConfig   `yaml:"graph"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

type LoggingConfig struct {
	Severity  LogSeverity            `yaml:"severity"`
	FilePath  ResolvedPath           `yaml:"file-path"`
	Format    string                 `yaml:"format"`
	LogRotate LogRotateLoggingConfig `yaml:"log-rotate"`
}

// VolfileConfig describes how to fetch the textual translator-graph
// description and how to reach the servers it names.
type VolfileConfig struct {
	// Path is a local volfile to load directly, bypassing the server
	// fetch/poll path entirely (primarily for tests and single-node use).
	Path string `yaml:"path"`

	ServerHost string    `yaml:"server-host"`
	ServerPort int       `yaml:"server-port"`
	Transport  Transport `yaml:"transport"`

	// FetchInterval governs how often the volfile server is polled for
	// a new graph generation once connected.
	FetchInterval time.Duration `yaml:"fetch-interval"`
}

// GraphConfig tunes the in-process graph/resolver/erasure-coding
// machinery that isn't expressed in the volfile itself.
type GraphConfig struct {
	MatrixCacheSize int `yaml:"matrix-cache-size"`
	SyncopWorkers   int `yaml:"syncop-workers"`
	PriorityWorkers int `yaml:"priority-workers"`
	RevalCount      int `yaml:"reval-count"`
	MaxSymlinkDepth int `yaml:"max-symlink-depth"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "", "The application name of this mount.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Print debug messages when a mutex is held too long.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(InfoLogSeverity), "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("volfile-path", "", "", "Path to a local volfile, bypassing the volfile server.")
	if err = viper.BindPFlag("volfile.path", flagSet.Lookup("volfile-path")); err != nil {
		return err
	}

	flagSet.StringP("volfile-server", "", "", "Host serving the volfile over the management protocol.")
	if err = viper.BindPFlag("volfile.server-host", flagSet.Lookup("volfile-server")); err != nil {
		return err
	}

	flagSet.IntP("volfile-server-port", "", 24007, "Port of the volfile server.")
	if err = viper.BindPFlag("volfile.server-port", flagSet.Lookup("volfile-server-port")); err != nil {
		return err
	}

	flagSet.StringP("transport", "", string(TransportTCP), "Transport to reach the volfile/brick servers: tcp, unix, rdma.")
	if err = viper.BindPFlag("volfile.transport", flagSet.Lookup("transport")); err != nil {
		return err
	}

	flagSet.IntP("matrix-cache-size", "", DefaultMatrixCacheSize, "Max cached erasure-coding decode matrices; 0 disables the cache.")
	if err = viper.BindPFlag("graph.matrix-cache-size", flagSet.Lookup("matrix-cache-size")); err != nil {
		return err
	}

	flagSet.IntP("syncop-workers", "", DefaultSyncopWorkers(), "Size of the normal-priority synctask worker pool.")
	if err = viper.BindPFlag("graph.syncop-workers", flagSet.Lookup("syncop-workers")); err != nil {
		return err
	}

	return nil
}
