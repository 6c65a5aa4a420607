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

package pool

import (
	"sort"
	"strings"

	"hyraid/internal/types"
)

// memberPaths extracts a Group's member device paths, the shape the
// Sub-Array Driver's contract wants (spec.md §4.3).
func memberPaths(g types.Group) []string {
	paths := make([]string, len(g.Members))
	for i, m := range g.Members {
		paths[i] = m.Path
	}
	return paths
}

// diskEntriesFromMap converts a freshly-built PartitionMap into the
// manifest's DiskEntry list, in stable order.
func diskEntriesFromMap(pm types.PartitionMap) []types.DiskEntry {
	disks := make([]string, 0, len(pm))
	for disk := range pm {
		disks = append(disks, disk)
	}
	sort.Strings(disks)
	var entries []types.DiskEntry
	for _, disk := range disks {
		entries = append(entries, types.DiskEntry{Path: disk, Partitions: pm[disk]})
	}
	return entries
}

// mergeDiskEntries folds newly-created partitions (from an `add`) into the
// existing manifest's per-disk ledger, appending to an existing disk entry
// or creating a new one.
func mergeDiskEntries(existing []types.DiskEntry, pm types.PartitionMap) []types.DiskEntry {
	byPath := map[string]*types.DiskEntry{}
	for i := range existing {
		byPath[existing[i].Path] = &existing[i]
	}
	for disk, parts := range pm {
		if e, ok := byPath[disk]; ok {
			e.Partitions = append(e.Partitions, parts...)
			continue
		}
		existing = append(existing, types.DiskEntry{Path: disk, Partitions: parts})
	}
	return existing
}

// vgNameFromLVPath recovers the volume group name from the canonical
// /dev/<vg>/lvol0 path the manifest records (spec.md §4.4).
func vgNameFromLVPath(lvPath string) string {
	trimmed := strings.TrimPrefix(lvPath, "/dev/")
	return strings.TrimSuffix(trimmed, "/lvol0")
}

// partitionsBySubArray groups the manifest's DiskPartitions belonging to
// any of the named disks by the sub-array that owns them, for `fail` and
// `remove` (spec.md §4.6).
func partitionsBySubArray(entry types.HyraidArray, disks []string) map[string][]types.DiskPartition {
	diskSet := map[string]bool{}
	for _, d := range disks {
		diskSet[d] = true
	}
	onNamedDisks := map[string]bool{}
	for _, d := range entry.Disks {
		if diskSet[d.Path] {
			for _, p := range d.Partitions {
				onNamedDisks[p.Path] = true
			}
		}
	}

	result := map[string][]types.DiskPartition{}
	for saName, members := range entry.RaidMap {
		for _, m := range members {
			if onNamedDisks[m.Path] {
				result[saName] = append(result[saName], m)
			}
		}
	}
	return result
}

// pathsOf extracts device paths from a DiskPartition list.
func pathsOf(parts []types.DiskPartition) []string {
	paths := make([]string, len(parts))
	for i, p := range parts {
		paths[i] = p.Path
	}
	return paths
}

// remainingMembers returns all of existing not present in removed.
func remainingMembers(existing []types.DiskPartition, removed []types.DiskPartition) []types.DiskPartition {
	removedSet := map[string]bool{}
	for _, r := range removed {
		removedSet[r.Path] = true
	}
	var remaining []types.DiskPartition
	for _, e := range existing {
		if !removedSet[e.Path] {
			remaining = append(remaining, e)
		}
	}
	return remaining
}

// dropPartitions removes every partition whose path is in removed from the
// named disks' entries, deleting a disk entry entirely if it ends up with
// no partitions left.
func dropPartitions(entries []types.DiskEntry, disks []string, removed map[string]bool) []types.DiskEntry {
	diskSet := map[string]bool{}
	for _, d := range disks {
		diskSet[d] = true
	}
	result := entries[:0]
	for _, e := range entries {
		if !diskSet[e.Path] {
			result = append(result, e)
			continue
		}
		var kept []types.DiskPartition
		for _, p := range e.Partitions {
			if !removed[p.Path] {
				kept = append(kept, p)
			}
		}
		if len(kept) > 0 {
			e.Partitions = kept
			result = append(result, e)
		}
	}
	return result
}
