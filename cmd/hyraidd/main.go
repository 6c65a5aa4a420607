/*
Copyright 2020 The MayaData Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command hyraidd is the long-running HyRAID daemon (spec.md §6): it serves
// pool operations over a Unix socket, one request at a time, taking the
// manifest lock only for each manifest write, the long-running-process
// shape the teacher's
// cmd/main.go used for its sync-hook HTTP server, adapted here to listen on
// a local socket instead of a network port.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"

	"hyraid/internal/daemon"
	"hyraid/internal/hyraiderr"
	"hyraid/internal/manifest"
	"hyraid/internal/pool"
)

func main() {
	socketPath := flag.String("socket", daemon.DefaultSocketPath, "path to the Unix socket to listen on")
	manifestPath := flag.String("manifest", manifest.DefaultPath, "path to the manifest file")
	flag.Parse()
	defer glog.Flush()

	if os.Geteuid() != 0 {
		glog.Exitf("hyraidd: %s", hyraiderr.Wrap(hyraiderr.ErrNotRoot, "hyraidd must run as root"))
	}

	srv, err := daemon.Listen(*socketPath)
	if err != nil {
		glog.Exitf("hyraidd: %s", err)
	}
	srv.Controller = pool.New(*manifestPath)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Infof("hyraidd: shutting down")
		cancel()
	}()

	glog.Infof("hyraidd: listening on %s, manifest %s", *socketPath, *manifestPath)
	if err := srv.Serve(ctx); err != nil {
		glog.Exitf("hyraidd: %s", err)
	}
}
