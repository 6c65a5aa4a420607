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

// Package mapper implements the HyRAID Group Mapper (spec.md §4.2): it
// turns a PartitionMap into groups of equal-sized partitions spanning
// distinct disks, each of which becomes one sub-array candidate.
//
// Grounded on the teacher's pkg/recommendation/device.go and map.go, which
// build a node -> capacity -> count map before deriving a RAID-group
// recommendation; HyRAID's mapper performs the structurally identical walk
// but over disk -> ordinal -> partition instead of node -> capacity ->
// count.
package mapper

import (
	"sort"

	"hyraid/internal/types"
)

// Group partitions pm into ordinal-indexed groups per spec.md §4.2's
// algorithm, dropping any group with fewer than 2 members. The returned
// slice is ordered by ordinal ascending.
func Group(pm types.PartitionMap) []types.Group {
	// Step 1: sort disks descending by partition count (stable ordering
	// among ties) so that the widest disks populate the low ordinals
	// first -- matching the teacher's pattern of iterating a
	// deterministically-ordered node list before building per-node maps.
	disks := make([]string, 0, len(pm))
	for disk := range pm {
		disks = append(disks, disk)
	}
	sort.SliceStable(disks, func(i, j int) bool {
		return len(pm[disks[i]]) > len(pm[disks[j]])
	})

	maxOrdinal := 0
	for _, disk := range disks {
		if n := len(pm[disk]); n > maxOrdinal {
			maxOrdinal = n
		}
	}

	groups := make([]types.Group, maxOrdinal)
	for ord := range groups {
		groups[ord].Ordinal = ord
	}

	// Step 2/3: each disk's j-th partition (already sorted ascending by
	// size when the Partitioner built pm) is appended to group j.
	for _, disk := range disks {
		parts := pm[disk]
		for j, part := range parts {
			groups[j].Size = part.Size
			groups[j].Members = append(groups[j].Members, part)
		}
	}

	// Step 4: drop groups with fewer than 2 members -- single-member
	// tiers aren't raided (spec.md §3).
	surviving := groups[:0]
	for _, g := range groups {
		if len(g.Members) >= 2 {
			surviving = append(surviving, g)
		}
	}
	return surviving
}
