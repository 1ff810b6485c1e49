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
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/distfs/govfs/cfg"
)

// Dial opens a connection to a volfile/brick server over the
// configured transport. Only tcp and unix are dialable here; rdma is
// downgraded to tcp by cfg.Rationalize before this is ever called.
// Grounded on gcs/conn.go's OpenConn, generalized from an
// http.Client-backed GCS connection to a grpc.ClientConn since the
// wire protocol this spec's transport carries is management-plane RPC,
// not HTTP REST.
func Dial(ctx context.Context, c *cfg.VolfileConfig, ts oauth2.TokenSource) (*grpc.ClientConn, error) {
	target, err := dialTarget(c)
	if err != nil {
		return nil, err
	}

	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if ts != nil {
		opts = append(opts, grpc.WithPerRPCCredentials(tokenSourceCreds{ts}))
	}

	return grpc.NewClient(target, opts...)
}

func dialTarget(c *cfg.VolfileConfig) (string, error) {
	switch c.Transport {
	case cfg.TransportTCP:
		if c.ServerHost == "" {
			return "", fmt.Errorf("graph: volfile.server-host required for tcp transport")
		}
		return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort), nil
	case cfg.TransportUnix:
		if c.ServerHost == "" {
			return "", fmt.Errorf("graph: volfile.server-host (socket path) required for unix transport")
		}
		return "unix:" + c.ServerHost, nil
	default:
		return "", fmt.Errorf("graph: unsupported transport %q", c.Transport)
	}
}

// tokenSourceCreds adapts an oauth2.TokenSource to grpc's per-RPC
// credential interface, so a deployer wiring a real brick-RPC
// translator behind Dial can reuse the same auth flow the teacher
// uses for GCS.
type tokenSourceCreds struct {
	ts oauth2.TokenSource
}

func (t tokenSourceCreds) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	tok, err := t.ts.Token()
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": "Bearer " + tok.AccessToken}, nil
}

func (t tokenSourceCreds) RequireTransportSecurity() bool { return false }
