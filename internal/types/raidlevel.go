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

import (
	"hyraid/internal/hyraiderr"

	"github.com/pkg/errors"
)

// SupportedRaidLevels are the only RAID levels a pool may be created with
// (spec.md §1/§4.6).
var SupportedRaidLevels = []int{0, 1, 5, 6}

// ValidateRaidLevel rejects any level outside SupportedRaidLevels, the way
// types.RaidGroupConfig.Validate rejects an unsupported PoolRAIDType.
func ValidateRaidLevel(level int) error {
	for _, l := range SupportedRaidLevels {
		if l == level {
			return nil
		}
	}
	return errors.Wrapf(hyraiderr.ErrBadInput,
		"invalid RAID level %d: supports %v", level, SupportedRaidLevels)
}

// EffectiveRaidLevel implements spec.md §4.6.1's per-group downgrade rule:
// a group's usable RAID level depends on how many members it has, not just
// the pool's intended level, because a heterogeneous tier may only be wide
// enough for a mirror even when the pool overall is RAID5/6.
func EffectiveRaidLevel(intended int, memberCount int) int {
	switch intended {
	case 0:
		return 0
	case 1:
		return 1
	case 5:
		if memberCount >= 3 {
			return 5
		}
		return 1
	case 6:
		if memberCount >= 3 {
			return 6
		}
		return 1
	default:
		// Unreachable once ValidateRaidLevel has run, but fail closed
		// rather than silently picking a level.
		return intended
	}
}
