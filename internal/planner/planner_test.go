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

package planner

import (
	"reflect"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name         string
		capacities   []int64
		wantSlices   []int64
	}{
		{
			name:       "all equal capacities collapse to one slice",
			capacities: []int64{1000, 1000, 1000},
			wantSlices: []int64{1000},
		},
		{
			name:       "three distinct tiers",
			capacities: []int64{1000, 2000, 3000},
			wantSlices: []int64{1000, 1000, 1000},
		},
		{
			name:       "duplicate smallest tier plus two more",
			capacities: []int64{500, 500, 1000, 2000},
			wantSlices: []int64{500, 500, 1000},
		},
		{
			name:       "single disk",
			capacities: []int64{1000},
			wantSlices: []int64{1000},
		},
		{
			name:       "permutation invariance",
			capacities: []int64{3000, 1000, 2000},
			wantSlices: []int64{1000, 1000, 1000},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.capacities)
			if !reflect.DeepEqual(got, tt.wantSlices) {
				t.Fatalf("Plan(%v) = %v, want %v", tt.capacities, got, tt.wantSlices)
			}
			if Sum(got) != maxOf(tt.capacities) {
				t.Fatalf("Plan(%v): sum %d != max capacity %d", tt.capacities, Sum(got), maxOf(tt.capacities))
			}
			for _, c := range tt.capacities {
				prefix, sum := PrefixFor(got, c)
				if sum != c {
					t.Fatalf("PrefixFor(%v, %d) = %v summing to %d, want exactly %d", got, c, prefix, sum, c)
				}
			}
		})
	}
}

func TestRecomputeSlices(t *testing.T) {
	existing := Plan([]int64{1000, 2000, 3000})
	got := RecomputeSlices(existing, []int64{4000})
	want := []int64{1000, 1000, 1000, 1000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RecomputeSlices = %v, want %v", got, want)
	}
	for i, s := range existing {
		if got[i] != s {
			t.Fatalf("RecomputeSlices did not preserve existing prefix at ordinal %d: got %v, existing %v", i, got, existing)
		}
	}
}

func TestRecomputeSlicesNoNewTier(t *testing.T) {
	existing := Plan([]int64{1000, 2000, 3000})
	// A disk no larger than the current total contributes no new slice;
	// spec.md's open question on whether to reject this is resolved in
	// SPEC_FULL.md: proceed, since existing slices may still gain members.
	got := RecomputeSlices(existing, []int64{1500})
	if !reflect.DeepEqual(got, existing) {
		t.Fatalf("RecomputeSlices with no larger disk should be a no-op, got %v want %v", got, existing)
	}
}

func maxOf(xs []int64) int64 {
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}
