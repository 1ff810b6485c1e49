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
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(Octal(0)):
			return strconv.ParseInt(s, 8, 32)
		case reflect.TypeOf(Transport("")):
			v := strings.ToLower(s)
			if !slices.Contains(validTransports, v) {
				return nil, fmt.Errorf("invalid transport: %s", s)
			}
			return v, nil
		case reflect.TypeOf(LogSeverity("")):
			level := strings.ToUpper(s)
			if _, ok := severityRanking[LogSeverity(level)]; !ok {
				return nil, fmt.Errorf("invalid log severity: %s", s)
			}
			return level, nil
		default:
			return data, nil
		}
	}
}

// DecodeHook composes the volfile/config decode hooks with
// mapstructure's built-in duration and comma-separated-slice hooks,
// the same composition shape the teacher's cfg package uses.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		hookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}
