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

// Package hyraiderr defines the HyRAID error-kind taxonomy (spec.md §7).
// Every core operation returns one of these sentinels wrapped with context
// via github.com/pkg/errors; callers compare with errors.Is / errors.Cause
// rather than type-asserting a bespoke error struct per package.
package hyraiderr

import "github.com/pkg/errors"

// Kind identifies which of the taxonomy's buckets an error belongs to.
type Kind string

// The error kinds named in spec.md §7. None of these carry their own
// message text; context is added by whoever returns them via errors.Wrapf.
const (
	NotRoot        Kind = "not-root"
	BadInput       Kind = "bad-input"
	BadDevice      Kind = "bad-device"
	BadName        Kind = "bad-name"
	EngineError    Kind = "engine-error"
	ParseError     Kind = "parse-error"
	KernelNotReady Kind = "kernel-not-ready"
	ManifestCorrupt Kind = "manifest-corrupt"
)

// sentinel is the Kind wrapped as an error so errors.Is/errors.Wrap compose
// naturally; Kind itself stays a plain string for switch statements at the
// CLI dispatch boundary.
type sentinel struct {
	kind Kind
}

func (s *sentinel) Error() string {
	return string(s.kind)
}

var (
	ErrNotRoot        = &sentinel{NotRoot}
	ErrBadInput       = &sentinel{BadInput}
	ErrBadDevice      = &sentinel{BadDevice}
	ErrBadName        = &sentinel{BadName}
	ErrEngineError    = &sentinel{EngineError}
	ErrParseError     = &sentinel{ParseError}
	ErrKernelNotReady = &sentinel{KernelNotReady}
	ErrManifestCorrupt = &sentinel{ManifestCorrupt}
)

// Wrap attaches kind as the root cause of an operation-specific message,
// the way types.RaidGroupConfig.Validate wraps with errors.Errorf context.
func Wrap(kind error, format string, args ...interface{}) error {
	return errors.Wrapf(kind, format, args...)
}

// KindOf unwraps err looking for one of the sentinels above, returning ""
// if none is found (a programmer error: every core-operation error must
// bottom out in a known kind).
func KindOf(err error) Kind {
	cause := errors.Cause(err)
	if s, ok := cause.(*sentinel); ok {
		return s.kind
	}
	return ""
}
