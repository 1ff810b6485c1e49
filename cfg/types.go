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
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Octal is the datatype for params that accept a base-8 value, such as
// a file mode.
type Octal int

func (o *Octal) UnmarshalText(text []byte) error {
	v, err := strconv.ParseInt(string(text), 8, 32)
	if err != nil {
		return err
	}
	*o = Octal(v)
	return nil
}

func (o Octal) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(o), 8)), nil
}

func (o Octal) String() string {
	return strconv.FormatInt(int64(o), 8)
}

// Transport names the wire transport used to reach the volfile server
// and, by extension, the brick servers the volfile's translators name.
type Transport string

const (
	TransportTCP  Transport = "tcp"
	TransportUnix Transport = "unix"
	TransportRDMA Transport = "rdma"
)

var validTransports = []string{string(TransportTCP), string(TransportUnix), string(TransportRDMA)}

func (t *Transport) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	if !slices.Contains(validTransports, v) {
		return fmt.Errorf("invalid transport value: %s, must be one of %v", text, validTransports)
	}
	*t = Transport(v)
	return nil
}

// LogSeverity represents the logging severity: TRACE, DEBUG, INFO,
// WARNING, ERROR, or OFF.
type LogSeverity string

const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s, must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank, used
// to decide whether a given log call's level clears the configured
// threshold. Returns -1 for an unrecognized value.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// ResolvedPath is a filesystem path taken from config as-is; unlike the
// teacher's ResolvedPath, this module runs as a library with no
// parent-process indirection to resolve against; it is kept as a
// distinct type so config fields that must be a path are not
// interchangeable with plain strings.
type ResolvedPath string

func (p *ResolvedPath) UnmarshalText(text []byte) error {
	*p = ResolvedPath(text)
	return nil
}
