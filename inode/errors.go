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

package inode

import "errors"

// ErrStaleHandle is returned by a Lookuper when the server reports the
// handle no longer names a valid object on the current graph
// generation; the resolver re-issues the lookup to the Lookuper,
// without consulting its cached children, up to DefaultRevalCount
// more times before giving up.
var ErrStaleHandle = errors.New("inode: stale file handle")

// ErrTooManySymlinks is returned when symlink resolution recurses past
// MaxSymlinkDepth.
var ErrTooManySymlinks = errors.New("inode: too many levels of symbolic links")

// ErrNotFound is returned when an intermediate pathname component does
// not exist.
var ErrNotFound = errors.New("inode: no such file or directory")

// ErrNotDir is returned when a non-final pathname component resolves
// to a non-directory.
var ErrNotDir = errors.New("inode: not a directory")

// DefaultRevalCount bounds StaleHandle retries during resolution,
// matching the reference implementation's DEFAULT_REVAL_COUNT.
const DefaultRevalCount = 1

// MaxSymlinkDepth bounds recursive symlink resolution (spec §4.5:
// "limit recursion depth (spec: 2048)").
const MaxSymlinkDepth = 2048
