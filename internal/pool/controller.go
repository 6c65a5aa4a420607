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

// Package pool implements the HyRAID Pool Controller (spec.md §4.6): the
// orchestrator that sequences Planner -> Partitioner -> Group Mapper ->
// Sub-Array Driver -> Volume Driver -> Manifest for create/add/fail/remove.
//
// The Controller runs single-threaded and blocking (spec.md §5): each
// external-tool invocation runs to completion before the next begins, and
// there is no rollback across steps on failure -- the same
// fail-fast-and-surface-the-tool's-own-diagnostic approach the teacher
// takes in controller/cstorpoolcluster/reconciler.go when a step in pool
// provisioning fails.
package pool

import (
	"context"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"hyraid/internal/device"
	"hyraid/internal/hyraiderr"
	"hyraid/internal/manifest"
	"hyraid/internal/mapper"
	"hyraid/internal/namegen"
	"hyraid/internal/partition"
	"hyraid/internal/planner"
	"hyraid/internal/subarray"
	"hyraid/internal/types"
	"hyraid/internal/volume"
)

// Controller wires every collaborator named in spec.md §2 behind narrow
// interfaces, so tests can substitute in-memory fakes for the external
// engines (spec.md §9) without touching the Planner/Mapper logic they
// sequence.
type Controller struct {
	Inspector   device.Inspector
	Partitioner *partition.Partitioner
	SubArray    *subarray.Driver
	Volume      *volume.Driver
	Manifest    *manifest.Store
}

// New wires a Controller backed by the real external collaborators.
func New(manifestPath string) *Controller {
	return &Controller{
		Inspector:   device.NewInspector(),
		Partitioner: partition.New(),
		SubArray:    subarray.New(),
		Volume:      volume.New(),
		Manifest:    manifest.New(manifestPath),
	}
}

// Create implements spec.md §4.6's `create` operation.
func (c *Controller) Create(ctx context.Context, name string, disks []string, level int) (string, error) {
	if len(disks) < 2 {
		return "", errors.Wrapf(hyraiderr.ErrBadInput, "create %q: at least 2 disks required, got %d", name, len(disks))
	}
	if err := types.ValidateRaidLevel(level); err != nil {
		return "", err
	}
	if _, err := c.Manifest.Get(name); err == nil {
		return "", errors.Wrapf(hyraiderr.ErrBadInput, "create %q: pool already exists", name)
	}

	glog.V(1).Infof("create %q: inspecting %d disks", name, len(disks))
	inspected := make([]device.Disk, 0, len(disks))
	for _, d := range disks {
		if err := c.Partitioner.EnsureGPT(ctx, d); err != nil {
			return "", err
		}
		if err := c.Partitioner.ClearPartitions(ctx, d); err != nil {
			return "", err
		}
		info, err := c.Inspector.Inspect(d)
		if err != nil {
			return "", err
		}
		inspected = append(inspected, info)
	}

	capacities := make([]int64, len(inspected))
	for i, d := range inspected {
		capacities[i] = d.FreeBytes
	}
	slices := planner.Plan(capacities)
	glog.V(1).Infof("create %q: slice plan %v", name, slices)

	pm, err := c.partitionAll(ctx, inspected, slices)
	if err != nil {
		return "", err
	}

	groups := mapper.Group(pm)
	glog.V(1).Infof("create %q: %d surviving groups", name, len(groups))

	raidMap := types.RaidMap{}
	for _, g := range groups {
		members := memberPaths(g)
		effective := types.EffectiveRaidLevel(level, len(g.Members))
		saName := namegen.SubArrayName()
		if err := c.SubArray.CreateRaidArray(ctx, saName, members, effective); err != nil {
			return "", err
		}
		raidMap[saName] = g.Members
	}

	lvPath, err := c.provisionVolume(ctx, raidMap)
	if err != nil {
		return "", err
	}

	entry := types.HyraidArray{
		Name:      name,
		LvmLVPath: lvPath,
		RaidLevel: level,
		Disks:     diskEntriesFromMap(pm),
		RaidMap:   raidMap,
		Slices:    slices,
	}
	if err := c.Manifest.Append(entry); err != nil {
		return "", err
	}
	return lvPath, nil
}

// Add implements spec.md §4.6's `add` operation.
func (c *Controller) Add(ctx context.Context, name string, disks []string) error {
	entry, err := c.Manifest.Get(name)
	if err != nil {
		return err
	}

	inspected := make([]device.Disk, 0, len(disks))
	for _, d := range disks {
		if err := c.Partitioner.EnsureGPT(ctx, d); err != nil {
			return err
		}
		if err := c.Partitioner.ClearPartitions(ctx, d); err != nil {
			return err
		}
		info, err := c.Inspector.Inspect(d)
		if err != nil {
			return err
		}
		inspected = append(inspected, info)
	}

	capacities := make([]int64, len(inspected))
	for i, d := range inspected {
		capacities[i] = d.FreeBytes
	}
	newSlices := planner.RecomputeSlices(entry.Slices, capacities)
	glog.V(1).Infof("add %q: recomputed slices %v", name, newSlices)

	pm, err := c.partitionAll(ctx, inspected, newSlices)
	if err != nil {
		return err
	}

	newGroups := mapper.Group(pm)

	existingBySize := map[int64]string{}
	for saName, members := range entry.RaidMap {
		if len(members) > 0 {
			existingBySize[members[0].Size] = saName
		}
	}

	for _, g := range newGroups {
		members := memberPaths(g)
		if saName, ok := existingBySize[g.Size]; ok {
			if err := c.SubArray.Add(ctx, saName, members); err != nil {
				return err
			}
			if err := c.Volume.PVResize(ctx, saName); err != nil {
				return err
			}
			entry.RaidMap[saName] = append(entry.RaidMap[saName], g.Members...)
			continue
		}
		effective := types.EffectiveRaidLevel(entry.RaidLevel, len(g.Members))
		saName := namegen.SubArrayName()
		if err := c.SubArray.CreateRaidArray(ctx, saName, members, effective); err != nil {
			return err
		}
		if err := c.Volume.PVCreate(ctx, saName); err != nil {
			return err
		}
		vgName := vgNameFromLVPath(entry.LvmLVPath)
		if err := c.Volume.VGExtend(ctx, vgName, []string{saName}); err != nil {
			return err
		}
		entry.RaidMap[saName] = g.Members
	}

	entry.Slices = newSlices
	entry.Disks = mergeDiskEntries(entry.Disks, pm)
	return c.Manifest.Replace(entry)
}

// Fail implements spec.md §4.6's `fail` operation: the manifest is not
// modified, since the sub-array's membership is intact, just degraded.
func (c *Controller) Fail(ctx context.Context, name string, disks []string) error {
	entry, err := c.Manifest.Get(name)
	if err != nil {
		return err
	}
	bySA := partitionsBySubArray(entry, disks)
	for saName, parts := range bySA {
		if err := c.SubArray.Fail(ctx, saName, pathsOf(parts)); err != nil {
			return err
		}
	}
	return nil
}

// Remove implements spec.md §4.6's `remove` operation: each affected
// sub-array's RaidMap entry keeps only its surviving members, the removed
// partitions are dropped from Disks in the same manifest write, and a
// sub-array that loses all members is deleted from the RaidMap.
func (c *Controller) Remove(ctx context.Context, name string, disks []string) error {
	entry, err := c.Manifest.Get(name)
	if err != nil {
		return err
	}
	bySA := partitionsBySubArray(entry, disks)
	removed := map[string]bool{}
	for _, d := range entry.Disks {
		for _, p := range d.Partitions {
			for _, disk := range disks {
				if d.Path == disk {
					removed[p.Path] = true
				}
			}
		}
	}

	for saName, parts := range bySA {
		if err := c.SubArray.Remove(ctx, saName, pathsOf(parts)); err != nil {
			return err
		}
		remaining := remainingMembers(entry.RaidMap[saName], parts)
		if len(remaining) == 0 {
			delete(entry.RaidMap, saName)
		} else {
			entry.RaidMap[saName] = remaining
		}
	}

	entry.Disks = dropPartitions(entry.Disks, disks, removed)
	return c.Manifest.Replace(entry)
}

// partitionAll carves slices out of each disk (the prefix that disk's free
// capacity admits) and validates every resulting partition node appears,
// returning the resulting PartitionMap (spec.md §4.6 steps 4-5).
func (c *Controller) partitionAll(ctx context.Context, disks []device.Disk, slices []int64) (types.PartitionMap, error) {
	pm := types.PartitionMap{}
	for _, d := range disks {
		prefix, _ := planner.PrefixFor(slices, d.FreeBytes)
		if len(prefix) == 0 {
			continue
		}
		partSlices := make([]partition.Slice, len(prefix))
		for i, size := range prefix {
			partSlices[i] = partition.Slice{Size: size}
		}
		paths, err := c.Partitioner.CreatePartitions(ctx, d.Path, partSlices)
		if err != nil {
			return nil, err
		}
		parts := make([]types.DiskPartition, len(paths))
		for i, p := range paths {
			if err := c.Partitioner.ValidatePartition(ctx, p); err != nil {
				return nil, err
			}
			parts[i] = types.DiskPartition{Path: p, Size: prefix[i]}
		}
		pm[d.Path] = parts
	}
	return pm, nil
}

// provisionVolume runs the Volume Driver sequence (spec.md §4.4): PVCreate
// per sub-array, VGCreate spanning them all, LVCreateFull.
func (c *Controller) provisionVolume(ctx context.Context, raidMap types.RaidMap) (string, error) {
	var arrays []string
	for saName := range raidMap {
		if err := c.Volume.PVCreate(ctx, saName); err != nil {
			return "", err
		}
		arrays = append(arrays, saName)
	}
	vgName := namegen.VolumeGroupName()
	if err := c.Volume.VGCreate(ctx, vgName, arrays); err != nil {
		return "", err
	}
	if err := c.Volume.LVCreateFull(ctx, vgName); err != nil {
		return "", err
	}
	return namegen.LogicalVolumePath(vgName), nil
}
