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

package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"hyraid/internal/device"
	"hyraid/internal/hyraiderr"
	"hyraid/internal/manifest"
	"hyraid/internal/partition"
	"hyraid/internal/pool"
	"hyraid/internal/subarray"
	"hyraid/internal/volume"
)

type fakeInspector struct {
	capacities map[string]int64
}

func (f fakeInspector) Inspect(path string) (device.Disk, error) {
	return device.Disk{Path: path, SectorSize: 512, FreeBytes: f.capacities[path]}, nil
}

type fakeRunner struct{ guidCounter int }

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	joined := strings.Join(args, " ")
	switch {
	case name == "blkid":
		return "", fmt.Errorf("no signature")
	case name == "sgdisk" && strings.Contains(joined, "--info"):
		f.guidCounter++
		return fmt.Sprintf("Partition unique GUID: 00000000-0000-0000-0000-%012d\n", f.guidCounter), nil
	default:
		return "", nil
	}
}

func newTestServer(t *testing.T, capacities map[string]int64) *Server {
	t.Helper()
	fr := &fakeRunner{}
	ctrl := &pool.Controller{
		Inspector:   fakeInspector{capacities: capacities},
		Partitioner: partition.NewWithRunner(fr),
		SubArray:    subarray.NewWithRunner(fr),
		Volume:      volume.NewWithRunner(fr),
		Manifest:    manifest.New(filepath.Join(t.TempDir(), "hyraid.json")),
	}
	return &Server{Controller: ctrl}
}

func TestDispatchCreate(t *testing.T) {
	const gb = int64(1) << 30
	s := newTestServer(t, map[string]int64{
		"/dev/sda": 1000 * gb,
		"/dev/sdb": 1000 * gb,
	})
	resp := s.dispatch(context.Background(), "create;pool1;5;/dev/sda,/dev/sdb")
	fields := strings.Split(resp, ";")
	if fields[0] != "ok" {
		t.Fatalf("unexpected create response: %q", resp)
	}
	if !strings.HasSuffix(fields[1], "/lvol0") {
		t.Fatalf("unexpected lv path in response: %q", resp)
	}
}

func TestDispatchUnknownOperation(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.dispatch(context.Background(), "bogus;pool1")
	fields := strings.Split(resp, ";")
	if fields[0] != "error" || fields[1] != string(hyraiderr.BadInput) {
		t.Fatalf("unexpected response for unknown op: %q", resp)
	}
}

func TestDispatchMalformedRequest(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.dispatch(context.Background(), "create")
	fields := strings.Split(resp, ";")
	if fields[0] != "error" || fields[1] != string(hyraiderr.BadInput) {
		t.Fatalf("unexpected response for malformed request: %q", resp)
	}
}

func TestDispatchAddToMissingPool(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.dispatch(context.Background(), "add;ghost;/dev/sdx")
	fields := strings.Split(resp, ";")
	if fields[0] != "error" || fields[1] != string(hyraiderr.BadInput) {
		t.Fatalf("unexpected response for add to missing pool: %q", resp)
	}
}
