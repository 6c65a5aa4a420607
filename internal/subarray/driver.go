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

// Package subarray implements the HyRAID Sub-Array Driver (spec.md §4.3):
// a narrow adapter onto the external mdadm RAID engine. Reimplementing a
// RAID engine is an explicit non-goal (spec.md §1); this package only
// shells out and parses its output, the same delegation the teacher draws
// around the external CStor pool operator in controller/cstorpoolcluster.
package subarray

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"hyraid/internal/hyraiderr"
)

// maxNameBytes is spec.md §4.3's "≤32 bytes after prefix stripping" rule.
const maxNameBytes = 32

// namePrefix is the platform's RAID-device prefix a sub-array name must
// begin with.
const namePrefix = "/dev/md/"

// Runner abstracts external command execution, letting tests substitute
// an in-memory fake per spec.md §9.
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

// Detail is get_detail's fixed set of labeled fields (spec.md §4.3),
// parsed from `mdadm --detail`'s human-readable report.
type Detail struct {
	CreationTime string
	UpdateTime   string
	Level        string
	ArraySize    int64
	UsedSize     int64
	RaidDevices  int
	TotalDevices int
	ActiveDevices int
	WorkingDevices int
	FailedDevices int
	SpareDevices int
	State        string
	Layout       string
	ChunkSize    string
	UUID         string
	Name         string
	Events       int64
}

// Driver is the Sub-Array Driver (spec.md §4.3).
type Driver struct {
	run Runner
}

// New returns a Driver backed by the real mdadm binary.
func New() *Driver { return &Driver{run: execRunner{}} }

// NewWithRunner is used by tests to inject a fake Runner.
func NewWithRunner(r Runner) *Driver { return &Driver{run: r} }

// ValidateName enforces spec.md §4.3's naming contract.
func ValidateName(name string) error {
	if !strings.HasPrefix(name, namePrefix) {
		return errors.Wrapf(hyraiderr.ErrBadName, "sub-array name %q must begin with %q", name, namePrefix)
	}
	if len(name)-len(namePrefix) > maxNameBytes {
		return errors.Wrapf(hyraiderr.ErrBadName, "sub-array name %q exceeds %d bytes after the %q prefix", name, maxNameBytes, namePrefix)
	}
	return nil
}

// validateMembers enforces spec.md §4.3's "all absolute device paths" rule.
func validateMembers(members []string) error {
	if len(members) == 0 {
		return errors.Wrapf(hyraiderr.ErrBadDevice, "sub-array requires at least one member")
	}
	for _, m := range members {
		if !strings.HasPrefix(m, "/") {
			return errors.Wrapf(hyraiderr.ErrBadDevice, "member %q is not an absolute device path", m)
		}
	}
	return nil
}

// validateLevel enforces spec.md §4.3's supported-level rule.
func validateLevel(level int) error {
	switch level {
	case 0, 1, 5, 6:
		return nil
	default:
		return errors.Wrapf(hyraiderr.ErrBadInput, "unsupported RAID level %d", level)
	}
}

// CreateRaidArray creates a new mdadm array named name from members at the
// given RAID level, with an internal bitmap and metadata version 1.2
// (spec.md §6).
func (d *Driver) CreateRaidArray(ctx context.Context, name string, members []string, level int) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := validateMembers(members); err != nil {
		return err
	}
	if err := validateLevel(level); err != nil {
		return err
	}
	args := []string{
		"--create", name,
		"--run",
		"--level=" + strconv.Itoa(level),
		"--metadata=1.2",
		"--bitmap=internal",
		"--raid-devices=" + strconv.Itoa(len(members)),
	}
	args = append(args, members...)
	_, err := d.run.Run(ctx, "mdadm", args...)
	return err
}

// Add adds members to an existing array (spec.md §4.3).
func (d *Driver) Add(ctx context.Context, name string, members []string) error {
	if err := validateMembers(members); err != nil {
		return err
	}
	args := append([]string{"--manage", name, "--add"}, members...)
	_, err := d.run.Run(ctx, "mdadm", args...)
	return err
}

// Fail marks members of name faulty without removing them (spec.md §4.6
// `fail` operation).
func (d *Driver) Fail(ctx context.Context, name string, members []string) error {
	if err := validateMembers(members); err != nil {
		return err
	}
	args := append([]string{"--manage", name, "--fail"}, members...)
	_, err := d.run.Run(ctx, "mdadm", args...)
	return err
}

// Remove removes members from name (spec.md §4.3).
func (d *Driver) Remove(ctx context.Context, name string, members []string) error {
	if err := validateMembers(members); err != nil {
		return err
	}
	args := append([]string{"--manage", name, "--remove"}, members...)
	_, err := d.run.Run(ctx, "mdadm", args...)
	return err
}

// Grow changes name's RAID level in place, to whatever extent the
// underlying engine natively supports (spec.md §1 excludes anything
// beyond that).
func (d *Driver) Grow(ctx context.Context, name string, newLevel int) error {
	if err := validateLevel(newLevel); err != nil {
		return err
	}
	_, err := d.run.Run(ctx, "mdadm", "--grow", name, "--level="+strconv.Itoa(newLevel))
	return err
}

// IsPartInRaidArray reports whether path is already a member of some
// mdadm array, so the Controller can avoid double-adding it.
func (d *Driver) IsPartInRaidArray(ctx context.Context, path string) (bool, error) {
	_, err := d.run.Run(ctx, "mdadm", "--examine", path)
	if err != nil {
		if hyraiderr.KindOf(err) == hyraiderr.EngineError {
			// mdadm --examine exits non-zero on a device with no RAID
			// superblock; that's a normal "no" answer, not a fault.
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetDetail parses mdadm --detail's fixed field set into a Detail record.
// A missing field is a *parse-error* (spec.md §4.3).
func (d *Driver) GetDetail(ctx context.Context, name string) (Detail, error) {
	out, err := d.run.Run(ctx, "mdadm", "--detail", name)
	if err != nil {
		return Detail{}, err
	}
	return parseDetail(name, out)
}

var detailFields = []string{
	"Creation Time",
	"Raid Level",
	"Array Size",
	"Used Dev Size",
	"Raid Devices",
	"Total Devices",
	"Active Devices",
	"Working Devices",
	"Failed Devices",
	"Spare Devices",
	"State",
	"Layout",
	"Chunk Size",
	"Name",
	"UUID",
	"Update Time",
	"Events",
}

func parseDetail(name, out string) (Detail, error) {
	fields := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		fields[key] = val
	}

	for _, f := range detailFields {
		if _, ok := fields[f]; !ok {
			return Detail{}, errors.Wrapf(hyraiderr.ErrParseError,
				"get_detail %q: missing field %q", name, f)
		}
	}

	det := Detail{
		CreationTime: fields["Creation Time"],
		UpdateTime:   fields["Update Time"],
		Level:        fields["Raid Level"],
		State:        fields["State"],
		Layout:       fields["Layout"],
		ChunkSize:    fields["Chunk Size"],
		UUID:         fields["UUID"],
		Name:         fields["Name"],
	}
	det.ArraySize = parseLeadingBytes(fields["Array Size"])
	det.UsedSize = parseLeadingBytes(fields["Used Dev Size"])
	det.RaidDevices = parseLeadingInt(fields["Raid Devices"])
	det.TotalDevices = parseLeadingInt(fields["Total Devices"])
	det.ActiveDevices = parseLeadingInt(fields["Active Devices"])
	det.WorkingDevices = parseLeadingInt(fields["Working Devices"])
	det.FailedDevices = parseLeadingInt(fields["Failed Devices"])
	det.SpareDevices = parseLeadingInt(fields["Spare Devices"])
	det.Events = parseLeadingBytes(fields["Events"])
	return det, nil
}

// parseLeadingBytes extracts the leading decimal number mdadm prints
// before its "(xxx.xx MiB yyy.yy MB)" parenthetical, e.g.
// "1953125632 (1863.00 GiB 2000.00 GB)" -> 1953125632.
func parseLeadingBytes(s string) int64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.ParseInt(fields[0], 10, 64)
	return n
}

func parseLeadingInt(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(fields[0])
	return n
}
