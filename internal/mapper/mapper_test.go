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

package mapper

import (
	"testing"

	"hyraid/internal/types"
)

// buildPartitionMap mirrors what the Partitioner would have produced: disk
// path -> ascending-size partitions, one per slice ordinal the disk's
// capacity admits.
func buildPartitionMap(diskSlices map[string][]int64) types.PartitionMap {
	pm := types.PartitionMap{}
	for disk, sizes := range diskSlices {
		var parts []types.DiskPartition
		for _, s := range sizes {
			parts = append(parts, types.DiskPartition{Path: disk, Size: s})
		}
		pm[disk] = parts
	}
	return pm
}

func TestGroup_ScenarioThreeTiers(t *testing.T) {
	// disks [1000, 2000, 3000] GB -> slices [1000, 1000, 1000];
	// group 0 = 3 members, group 1 = 2 members, group 2 = 1 member (dropped).
	pm := buildPartitionMap(map[string][]int64{
		"/dev/sda": {1000},
		"/dev/sdb": {1000, 1000},
		"/dev/sdc": {1000, 1000, 1000},
	})
	groups := Group(pm)
	if len(groups) != 2 {
		t.Fatalf("got %d surviving groups, want 2", len(groups))
	}
	if len(groups[0].Members) != 3 {
		t.Fatalf("group 0 has %d members, want 3", len(groups[0].Members))
	}
	if len(groups[1].Members) != 2 {
		t.Fatalf("group 1 has %d members, want 2", len(groups[1].Members))
	}
	for _, g := range groups {
		for _, m := range g.Members {
			if m.Size != g.Size {
				t.Fatalf("group %d has mismatched member size %d != %d", g.Ordinal, m.Size, g.Size)
			}
		}
	}
}

func TestGroup_AllSingleMemberDropped(t *testing.T) {
	pm := buildPartitionMap(map[string][]int64{
		"/dev/sda": {1000},
	})
	groups := Group(pm)
	if len(groups) != 0 {
		t.Fatalf("single disk should produce zero surviving groups, got %d", len(groups))
	}
}

func TestGroup_FourTierScenario(t *testing.T) {
	// disks [500, 500, 1000, 2000] -> slices [500, 500, 1000];
	// group 0 = 4 members, group 1 = 2 members, group 2 = 1 member (dropped).
	pm := buildPartitionMap(map[string][]int64{
		"/dev/sda": {500},
		"/dev/sdb": {500},
		"/dev/sdc": {500, 500},
		"/dev/sdd": {500, 500, 1000},
	})
	groups := Group(pm)
	if len(groups) != 2 {
		t.Fatalf("got %d surviving groups, want 2", len(groups))
	}
	if len(groups[0].Members) != 4 {
		t.Fatalf("group 0 has %d members, want 4", len(groups[0].Members))
	}
	if len(groups[1].Members) != 2 {
		t.Fatalf("group 1 has %d members, want 2", len(groups[1].Members))
	}
}
