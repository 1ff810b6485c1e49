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

// Package client implements the filesystem context (Fs): the
// POSIX-shaped application API, handle/object resolution, and upcall
// delivery that sit on top of the inode resolver and translator graph
// packages (spec §1: a direct library call surface, analogous to
// libgfapi, not a FUSE kernel driver).
package client

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/distfs/govfs/inode"
)

// Sentinel errors surfaced at the client API boundary, grounded on
// spec §7's error taxonomy.
var (
	ErrNotInitialized = errors.New("client: filesystem context not initialized")
	ErrInvalid        = errors.New("client: invalid argument")
	ErrExist          = errors.New("client: file exists")
	ErrIsDir          = errors.New("client: is a directory")
	ErrNotDir         = errors.New("client: not a directory")
	ErrBadFd          = errors.New("client: bad file descriptor")
	ErrBadFdState     = errors.New("client: file descriptor in unexpected state")
	ErrNoData         = errors.New("client: no attribute data")
	ErrNotSupported   = errors.New("client: operation not supported")
	ErrInterrupted    = errors.New("client: interrupted")
)

// Errno maps an error produced anywhere in the client/inode/graph
// stack to the POSIX errno value the application API boundary reports
// (spec §6 "Error reporting"), via golang.org/x/sys/unix constants
// rather than hand-rolled numeric literals (the teacher already
// imports golang.org/x/sys/unix for RLIMIT_NOFILE; this reuses the
// same import for the errno table).
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	switch {
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrInvalid):
		return unix.EINVAL
	case errors.Is(err, ErrExist):
		return unix.EEXIST
	case errors.Is(err, ErrIsDir):
		return unix.EISDIR
	case errors.Is(err, ErrNotDir), errors.Is(err, inode.ErrNotDir):
		return unix.ENOTDIR
	case errors.Is(err, ErrBadFd):
		return unix.EBADF
	case errors.Is(err, ErrBadFdState):
		return unix.EBADFD
	case errors.Is(err, ErrNoData):
		return unix.ENODATA
	case errors.Is(err, ErrNotSupported):
		return unix.ENOTSUP
	case errors.Is(err, ErrInterrupted):
		return unix.EINTR
	case errors.Is(err, inode.ErrNotFound), errors.Is(err, inode.ErrLookupMiss):
		return unix.ENOENT
	case errors.Is(err, inode.ErrTooManySymlinks):
		return unix.ELOOP
	case errors.Is(err, inode.ErrStaleHandle):
		return unix.ESTALE
	default:
		return unix.EIO
	}
}
