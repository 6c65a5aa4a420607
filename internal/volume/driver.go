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

// Package volume implements the HyRAID Volume Driver (spec.md §4.4): an
// adapter onto the external LVM2 tools. Reimplementing a logical-volume
// manager is an explicit non-goal (spec.md §1); this package only shells
// out to pvcreate/vgcreate/lvcreate/pvresize/vgextend.
package volume

import (
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"hyraid/internal/hyraiderr"
)

// Runner abstracts external command execution (spec.md §9).
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(hyraiderr.ErrEngineError, "%s: %s", strings.TrimSpace(string(out)), err)
	}
	return string(out), nil
}

// Driver is the Volume Driver (spec.md §4.4).
type Driver struct {
	run Runner
}

// New returns a Driver backed by the real LVM2 binaries.
func New() *Driver { return &Driver{run: execRunner{}} }

// NewWithRunner is used by tests to inject a fake Runner.
func NewWithRunner(r Runner) *Driver { return &Driver{run: r} }

// PVCreate initializes array as a physical volume (spec.md §4.4 step 1).
func (d *Driver) PVCreate(ctx context.Context, array string) error {
	_, err := d.run.Run(ctx, "pvcreate", "-y", array)
	return err
}

// PVResize is invoked after a sub-array grows (spec.md §4.4).
func (d *Driver) PVResize(ctx context.Context, array string) error {
	_, err := d.run.Run(ctx, "pvresize", array)
	return err
}

// VGCreate creates a named volume group spanning arrays (spec.md §4.4 step 2).
func (d *Driver) VGCreate(ctx context.Context, vgName string, arrays []string) error {
	args := append([]string{vgName}, arrays...)
	_, err := d.run.Run(ctx, "vgcreate", args...)
	return err
}

// VGExtend adds a newly-introduced array's physical volume to an existing
// volume group (spec.md §4.4).
func (d *Driver) VGExtend(ctx context.Context, vgName string, arrays []string) error {
	args := append([]string{vgName}, arrays...)
	_, err := d.run.Run(ctx, "vgextend", args...)
	return err
}

// LVCreateFull allocates one logical volume consuming 100% of vgName's
// free extents (spec.md §4.4 step 3), named lvol0.
func (d *Driver) LVCreateFull(ctx context.Context, vgName string) error {
	_, err := d.run.Run(ctx, "lvcreate", "-n", "lvol0", "-l", "100%FREE", vgName)
	return err
}
