// Copyright 2025 Google LLC
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

package common

import (
	"fmt"
	"log"
	"os"
)

func CloseFile(file *os.File) {
	if err := file.Close(); err != nil {
		log.Fatalf("error in closing: %v", err)
	}
}

// WriteFile is used by the statedump Sysrq('S') path to render a
// snapshot to the configured location (spec §2.5).
func WriteFile(fileName string, content []byte) (err error) {
	f, err := os.OpenFile(fileName, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open file for write: %w", err)
	}
	defer CloseFile(f)

	_, err = f.Write(content)
	return err
}

func ReadFile(filePath string) (content []byte, err error) {
	f, err := os.OpenFile(filePath, os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("open file for read: %w", err)
	}
	defer CloseFile(f)

	content, err = os.ReadFile(f.Name())
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return content, nil
}
