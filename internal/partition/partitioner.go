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

// Package partition implements the HyRAID Partitioner (spec.md §4.5). GPT
// manipulation is delegated to sgdisk and partition-table rescans to
// partprobe -- both external tools per spec.md §1's explicit non-goal of
// reimplementing a GPT library -- the same delegation boundary the teacher
// draws around the CStor pool engine in controller/cstorpoolcluster.
package partition

import (
	"context"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"hyraid/internal/hyraiderr"
	"hyraid/internal/namegen"
)

// validatePollInterval is spec.md §4.5's "100 ms poll" bound.
const validatePollInterval = 100 * time.Millisecond

// validatePollTimeout caps the indefinite retry spec.md §5's Design Notes
// flag as a latent bug: "a real implementation should cap this (suggested:
// 30s, then fail with kernel-not-ready)".
const validatePollTimeout = 30 * time.Second

// Runner abstracts external command execution so tests can substitute an
// in-memory fake rather than exec.Command, per spec.md §9's "Sub-Array and
// Volume Drivers should be defined behind narrow capability contracts so
// tests can substitute in-memory fakes" -- applied here to the Partitioner
// too, since it shells out just as much as those drivers do.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, err error)
}

// execRunner is the real Runner, backed by os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), errors.Wrapf(hyraiderr.ErrEngineError, "%s %s: %s: %s",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Slice is one entry of a partitioning plan for a single disk: a size in
// bytes to carve out in order.
type Slice struct {
	Size int64
}

// Partition is a created partition before its stable path has been
// resolved.
type Partition struct {
	Size int64
}

// Partitioner implements spec.md §4.5's four responsibilities.
type Partitioner struct {
	run Runner
}

// New returns a Partitioner that shells out to sgdisk/partprobe/blkid.
func New() *Partitioner {
	return &Partitioner{run: execRunner{}}
}

// NewWithRunner is used by tests to inject a fake Runner.
func NewWithRunner(r Runner) *Partitioner {
	return &Partitioner{run: r}
}

// EnsureGPT inspects disk's partition-table label and writes a fresh GPT
// label if one isn't already present (spec.md §4.5).
func (p *Partitioner) EnsureGPT(ctx context.Context, disk string) error {
	out, err := p.run.Run(ctx, "blkid", "-p", "-o", "value", "-s", "PTTYPE", disk)
	if err != nil {
		// blkid exits non-zero on an unlabeled disk; that's expected,
		// not a bad-device condition -- only treat it as fatal below
		// if sgdisk itself then refuses to label the disk.
		out = ""
	}
	if strings.TrimSpace(out) == "gpt" {
		return nil
	}
	if _, err := p.run.Run(ctx, "sgdisk", "--clear", disk); err != nil {
		return errors.Wrapf(hyraiderr.ErrBadDevice, "ensure GPT on %q: %s", disk, err)
	}
	return nil
}

// ClearPartitions removes every partition entry and rewrites the table
// (spec.md §4.5), used by `create` on a fresh disk.
func (p *Partitioner) ClearPartitions(ctx context.Context, disk string) error {
	if _, err := p.run.Run(ctx, "sgdisk", "--zap-all", disk); err != nil {
		return errors.Wrapf(hyraiderr.ErrBadDevice, "clear partitions on %q: %s", disk, err)
	}
	if _, err := p.run.Run(ctx, "sgdisk", "--clear", disk); err != nil {
		return errors.Wrapf(hyraiderr.ErrBadDevice, "recreate GPT on %q: %s", disk, err)
	}
	return nil
}

// CreatePartitions allocates each slice as a "Linux filesystem"-typed
// partition named hyraid_partition, in order, then re-opens the disk to
// recover the assigned partition GUIDs and resolve each to a stable
// /dev/disk/by-partuuid/<guid> path (spec.md §4.5).
func (p *Partitioner) CreatePartitions(ctx context.Context, disk string, slices []Slice) ([]string, error) {
	for i, s := range slices {
		partNum := i + 1
		sizeSpec := "+0"
		if i != len(slices)-1 {
			// All but the last slice get an explicit size; the last
			// consumes whatever sgdisk's "0" end-of-disk shorthand
			// leaves, which by construction (Planner guarantees the
			// slice list sums to the disk's free capacity) is exactly
			// that slice's size.
			sizeSpec = sizeToSgdisk(s.Size)
		}
		args := []string{
			"--new", partNum2Spec(partNum, sizeSpec),
			"--typecode", partNumTypeSpec(partNum, "8300"),
			"--change-name", partNumNameSpec(partNum, namegen.PartitionName),
			disk,
		}
		if _, err := p.run.Run(ctx, "sgdisk", args...); err != nil {
			return nil, errors.Wrapf(hyraiderr.ErrEngineError,
				"create partition %d (%d bytes) on %q: %s", partNum, s.Size, disk, err)
		}
	}

	if _, err := p.run.Run(ctx, "partprobe", disk); err != nil {
		return nil, errors.Wrapf(hyraiderr.ErrEngineError, "rescan %q: %s", disk, err)
	}

	paths := make([]string, len(slices))
	for i := range slices {
		partNum := i + 1
		guid, err := p.partitionGUID(ctx, disk, partNum)
		if err != nil {
			return nil, err
		}
		paths[i] = filepath.Join("/dev/disk/by-partuuid", guid)
	}
	return paths, nil
}

// partitionGUID recovers the GUID sgdisk assigned to partition number n on
// disk, so it can be resolved to a /dev/disk/by-partuuid/<guid> path.
func (p *Partitioner) partitionGUID(ctx context.Context, disk string, n int) (string, error) {
	out, err := p.run.Run(ctx, "sgdisk", "--info", itoa(n), disk)
	if err != nil {
		return "", errors.Wrapf(hyraiderr.ErrEngineError,
			"read partition %d GUID on %q: %s", n, disk, err)
	}
	const marker = "Partition unique GUID: "
	idx := strings.Index(out, marker)
	if idx < 0 {
		return "", errors.Wrapf(hyraiderr.ErrParseError,
			"partition %d on %q: no GUID in sgdisk --info output", n, disk)
	}
	rest := out[idx+len(marker):]
	end := strings.IndexAny(rest, "\r\n")
	if end < 0 {
		end = len(rest)
	}
	return strings.ToLower(strings.TrimSpace(rest[:end])), nil
}

// ValidatePartition busy-waits, bounded at validatePollTimeout and polling
// every validatePollInterval, until the kernel exposes path as a device
// node -- partition-table writes are asynchronous with respect to the
// device-node creation the Sub-Array Driver's next step needs (spec.md
// §4.5). Exceeding the bound is a *kernel-not-ready* error, not the
// spec-described indefinite retry (see SPEC_FULL.md §12).
func (p *Partitioner) ValidatePartition(ctx context.Context, path string) error {
	deadline := time.Now().Add(validatePollTimeout)
	for {
		if _, err := p.run.Run(ctx, "test", "-e", path); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(hyraiderr.ErrKernelNotReady,
				"partition %q did not appear within %s", path, validatePollTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(validatePollInterval):
		}
	}
}

func sizeToSgdisk(bytes int64) string {
	return "+" + strconv.FormatInt(bytes/1024, 10) + "K"
}

func partNum2Spec(n int, size string) string {
	return strconv.Itoa(n) + ":0:" + size
}

func partNumTypeSpec(n int, typecode string) string {
	return strconv.Itoa(n) + ":" + typecode
}

func partNumNameSpec(n int, name string) string {
	return strconv.Itoa(n) + ":" + name
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
