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

package volume

import (
	"context"
	"testing"
)

type fakeRunner struct {
	calls [][]string
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return "", f.err
}

func TestVolumeSequence(t *testing.T) {
	fr := &fakeRunner{}
	d := NewWithRunner(fr)

	if err := d.PVCreate(context.Background(), "/dev/md/hyraid_md_abc"); err != nil {
		t.Fatalf("PVCreate: %v", err)
	}
	if err := d.VGCreate(context.Background(), "hyraid_vg_xyz", []string{"/dev/md/hyraid_md_abc"}); err != nil {
		t.Fatalf("VGCreate: %v", err)
	}
	if err := d.LVCreateFull(context.Background(), "hyraid_vg_xyz"); err != nil {
		t.Fatalf("LVCreateFull: %v", err)
	}

	wantBins := []string{"pvcreate", "vgcreate", "lvcreate"}
	if len(fr.calls) != len(wantBins) {
		t.Fatalf("got %d calls, want %d", len(fr.calls), len(wantBins))
	}
	for i, bin := range wantBins {
		if fr.calls[i][0] != bin {
			t.Fatalf("call %d: got %q, want %q", i, fr.calls[i][0], bin)
		}
	}
}

func TestPVResizeAndVGExtend(t *testing.T) {
	fr := &fakeRunner{}
	d := NewWithRunner(fr)
	if err := d.PVResize(context.Background(), "/dev/md/hyraid_md_abc"); err != nil {
		t.Fatalf("PVResize: %v", err)
	}
	if err := d.VGExtend(context.Background(), "hyraid_vg_xyz", []string{"/dev/md/hyraid_md_def"}); err != nil {
		t.Fatalf("VGExtend: %v", err)
	}
}
