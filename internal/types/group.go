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

package types

// Group is an ordinal slice position populated with one DiskPartition per
// disk that reaches that ordinal (spec.md §3/§4.2). A Group is only
// "valid for redundancy" — and only then promoted to a SubArray — once it
// has at least 2 Members; the Group Mapper drops smaller ones.
type Group struct {
	// Ordinal is the slice index this group was built from.
	Ordinal int
	// Size is the common size, in bytes, of every member partition.
	Size int64
	// Members is one DiskPartition per contributing disk, in the order the
	// mapper visits disks (most partitions first).
	Members []DiskPartition
}

// SubArray is a Group that survived the ≥2-member cut and has been (or
// will be) realized as a conventional software-RAID array by the Sub-Array
// Driver.
type SubArray struct {
	// Name is the generated /dev/md/hyraid_md_<random10> device name.
	Name string
	// Level is the effective RAID level used for this sub-array, which
	// may be downgraded from the pool's intended level (spec.md §4.6.1).
	Level int
	Group Group
}

// RaidMap maps a sub-array's device name to the DiskPartitions composing
// it (spec.md §3's RaidMap).
type RaidMap map[string][]DiskPartition
