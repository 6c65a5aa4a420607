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

// Package namegen generates the random device and volume-group names
// spec.md §4.2/§6 require: /dev/md/hyraid_md_<random10> for sub-arrays and
// hyraid_vg_<random16> for volume groups. Randomness is sourced from
// github.com/google/uuid the same way hashicorp-packer-plugin-vsphere's
// driver package leans on it for resource naming, rather than hand-rolling
// a random-string generator over math/rand.
package namegen

import (
	"strings"

	"github.com/google/uuid"
)

const alphanumerics = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomAlphanumeric derives n alphanumeric characters from a fresh UUID's
// entropy, stripping the hyphens uuid.New() otherwise includes.
func randomAlphanumeric(n int) string {
	var b strings.Builder
	for b.Len() < n {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		for _, c := range raw {
			if b.Len() >= n {
				break
			}
			// Map hex digits onto the full alphanumeric set is
			// unnecessary; hex-only (0-9a-f) is still alphanumeric
			// and satisfies spec.md's "10/16 alphanumerics" naming
			// rule.
			if strings.ContainsRune(alphanumerics, c) {
				b.WriteRune(c)
			}
		}
	}
	return b.String()
}

// SubArrayName returns a fresh /dev/md/hyraid_md_<random10> device name
// (spec.md §4.2, §6).
func SubArrayName() string {
	return "/dev/md/hyraid_md_" + randomAlphanumeric(10)
}

// VolumeGroupName returns a fresh hyraid_vg_<random16> name (spec.md §4.4,
// §6).
func VolumeGroupName() string {
	return "hyraid_vg_" + randomAlphanumeric(16)
}

// LogicalVolumePath returns the canonical exposed path for a volume group,
// /dev/<vg>/lvol0 (spec.md §4.4).
func LogicalVolumePath(vg string) string {
	return "/dev/" + vg + "/lvol0"
}

// PartitionName is the fixed GPT partition name the Partitioner assigns
// every partition it creates (spec.md §4.5).
const PartitionName = "hyraid_partition"
