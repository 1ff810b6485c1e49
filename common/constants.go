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

package common

// POSIX pipeline op names, matching graph.Op's string values exactly so
// metric labels and translator dispatch names never drift apart. Kept
// as plain string constants (rather than importing graph.Op) since
// common sits below graph in the dependency order.
const (
	OpLookup      = "lookup"
	OpCreate      = "create"
	OpOpen        = "open"
	OpOpenDir     = "opendir"
	OpReadV       = "readv"
	OpWriteV      = "writev"
	OpFlush       = "flush"
	OpFsync       = "fsync"
	OpStat        = "stat"
	OpSetAttr     = "setattr"
	OpUnlink      = "unlink"
	OpRmdir       = "rmdir"
	OpMkdir       = "mkdir"
	OpMknod       = "mknod"
	OpRename      = "rename"
	OpLink        = "link"
	OpSymlink     = "symlink"
	OpReadLink    = "readlink"
	OpGetXattr    = "getxattr"
	OpSetXattr    = "setxattr"
	OpRemoveXattr = "removexattr"
	OpStatFs      = "statfs"
	OpLk          = "lk"
	OpReadDirP    = "readdirp"
	OpTruncate    = "truncate"
	OpFallocate   = "fallocate"
	OpDiscard     = "discard"
	OpZerofill    = "zerofill"
)
