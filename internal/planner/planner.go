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

// Package planner implements the HyRAID Slice Planner (spec.md §4.1): the
// algorithm that turns a multiset of disk capacities into an ordered list
// of slice sizes such that every disk's capacity is exactly the sum of a
// prefix of that list.
//
// The shape of this package — sort the inputs, then walk them accumulating
// a running total against which each new value is diffed — is grounded on
// the teacher's pkg/recommendation/minmaxcapacity.go, which performs the
// analogous job of bucketing heterogeneous block-device capacities by tier
// before a RAID-group recommendation is made.
package planner

import "sort"

// Plan implements spec.md §4.1: given a multiset of disk capacities
// (bytes, already sector-aligned and reduced to free space), return the
// ordered slice-size list S such that the k-th smallest distinct capacity
// equals the sum of S's first k elements.
//
// Example: capacities [1000, 2000, 3000] (GB) -> slices [1000, 1000, 1000].
// capacities [500, 500, 1000, 2000] -> slices [500, 500, 1000].
func Plan(capacities []int64) []int64 {
	if len(capacities) == 0 {
		return nil
	}
	sorted := make([]int64, len(capacities))
	copy(sorted, capacities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	slices := []int64{sorted[0]}
	running := sorted[0]
	for _, c := range sorted[1:] {
		d := c - running
		// d < 0 is impossible after sorting ascending; d == 0 means this
		// disk's capacity already matches an existing prefix sum exactly
		// and contributes no new tier.
		if d > 0 {
			slices = append(slices, d)
			running += d
		}
	}
	return slices
}

// RecomputeSlices implements spec.md §4.1's add-disk extension: given the
// slice list already in effect for a pool and the full capacity set of the
// disks being added, extend the list only for disks larger than the
// current total, preserving every existing slice's ordinal (and hence the
// partitions already carved from old disks at those ordinals).
func RecomputeSlices(existing []int64, newCapacities []int64) []int64 {
	slices := make([]int64, len(existing))
	copy(slices, existing)

	running := Sum(slices)

	sorted := make([]int64, len(newCapacities))
	copy(sorted, newCapacities)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, c := range sorted {
		d := c - running
		if d > 0 {
			slices = append(slices, d)
			running += d
		}
	}
	return slices
}

// Sum totals a slice-size list; also used to compute a disk's admitted
// prefix sum when checking the "largest prefix ≤ capacity" invariant.
func Sum(slices []int64) int64 {
	var total int64
	for _, s := range slices {
		total += s
	}
	return total
}

// PrefixFor returns the largest prefix of slices whose sum does not exceed
// capacity, and that sum. This is how the Partitioner decides which
// slices[0..k) a given disk receives (spec.md §3: "a given disk only
// receives slices [0..k] where k is the largest prefix summing to ≤ its
// capacity").
func PrefixFor(slices []int64, capacity int64) (prefix []int64, sum int64) {
	var running int64
	k := 0
	for i, s := range slices {
		if running+s > capacity {
			break
		}
		running += s
		k = i + 1
	}
	return slices[:k], running
}
