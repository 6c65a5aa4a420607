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

// Package types holds the HyRAID data model (spec.md §3): disks, slices,
// partitions, groups, sub-arrays and the pool manifest entry.
package types

import "k8s.io/apimachinery/pkg/api/resource"

// Disk is a block device considered for pooling. SectorSize and
// FreeBytes are read by the Device Inspector, never hard-coded — spec.md
// §4.5 and §9 call out a hard-coded 512 as a latent bug on 4K-native disks.
type Disk struct {
	// Path is the stable device path supplied by the operator, e.g.
	// /dev/sdb.
	Path string
	// SectorSize is the kernel-reported logical sector size in bytes.
	SectorSize int64
	// FreeBytes is the usable free-byte range after GPT reservation,
	// already floored to a SectorSize multiple.
	FreeBytes int64
}

// Quantity renders FreeBytes in the same human-facing format the teacher
// used for block device capacity (resource.Quantity), e.g. "2Ti".
func (d Disk) Quantity() resource.Quantity {
	return *resource.NewQuantity(d.FreeBytes, resource.BinarySI)
}

// DiskPartition is one partition carved out of a Disk by the Partitioner.
type DiskPartition struct {
	// Path is a stable /dev/disk/by-partuuid/<uuid> symlink, not a
	// kernel-assigned /dev/sdXN name, so that membership lookups survive
	// reboot-time renumbering (spec.md §9).
	Path string
	// Size is the partition size in bytes, exact — no rounding.
	Size int64
}

// PartitionMap is the per-disk ordered partition layout, disk path to its
// partitions sorted ascending by size (spec.md §3).
type PartitionMap map[string][]DiskPartition

// TotalSize sums the sizes of a disk's partitions; used to cross-check the
// invariant that it equals the largest slice-prefix sum not exceeding that
// disk's free capacity at plan time.
func TotalSize(partitions []DiskPartition) int64 {
	var total int64
	for _, p := range partitions {
		total += p.Size
	}
	return total
}
