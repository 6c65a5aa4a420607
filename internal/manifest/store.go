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

// Package manifest implements the HyRAID Manifest Store (spec.md §4.7): a
// single well-known file holding an ordered JSON array of HyraidArray
// records. Every write is a whole-file replacement; there is no
// partial-update protocol, and single-writer execution is enforced with a
// process-scoped flock(2) around the file (spec.md §5/§9), using
// golang.org/x/sys/unix the way the teacher's sibling pack repo
// canonical-snapd uses it throughout osutil for raw syscalls.
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"hyraid/internal/hyraiderr"
	"hyraid/internal/types"
)

// DefaultPath is spec.md §6's default manifest location. The Controller
// takes a Store rather than this constant so tests can point it at a
// scratch path (spec.md §9).
const DefaultPath = "/etc/hyraid.json"

// Store is the durable record of every pool's composition.
type Store struct {
	path string
}

// New returns a Store backed by path. path need not exist yet; Read will
// create it empty on first use.
func New(path string) *Store {
	return &Store{path: path}
}

// Read returns the full manifest, creating an empty one at Store's path if
// none exists yet (spec.md §4.7).
func (s *Store) Read() ([]types.HyraidArray, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		if werr := s.write(nil); werr != nil {
			return nil, werr
		}
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(hyraiderr.ErrManifestCorrupt, "read %q: %s", s.path, err)
	}
	var entries []types.HyraidArray
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(hyraiderr.ErrManifestCorrupt, "parse %q: %s", s.path, err)
	}
	return entries, nil
}

// Append reads the full list, adds entry, and writes the whole file back
// (spec.md §4.7). It fails if entry.Name already exists, since pool names
// must be unique across the manifest (spec.md §3).
func (s *Store) Append(entry types.HyraidArray) error {
	return s.withLock(func() error {
		entries, err := s.readLocked()
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Name == entry.Name {
				return errors.Wrapf(hyraiderr.ErrBadInput, "pool %q already exists", entry.Name)
			}
		}
		entries = append(entries, entry)
		return s.write(entries)
	})
}

// Replace substitutes the entry whose Name matches entry.Name and writes
// the whole file back (spec.md §4.7). It fails if no entry with that name
// exists.
func (s *Store) Replace(entry types.HyraidArray) error {
	return s.withLock(func() error {
		entries, err := s.readLocked()
		if err != nil {
			return err
		}
		for i, e := range entries {
			if e.Name == entry.Name {
				entries[i] = entry
				return s.write(entries)
			}
		}
		return errors.Wrapf(hyraiderr.ErrBadInput, "pool %q not found", entry.Name)
	})
}

// Get returns the entry named name, or an error if it doesn't exist.
func (s *Store) Get(name string) (types.HyraidArray, error) {
	entries, err := s.Read()
	if err != nil {
		return types.HyraidArray{}, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, nil
		}
	}
	return types.HyraidArray{}, errors.Wrapf(hyraiderr.ErrBadInput, "pool %q not found", name)
}

// readLocked is Read without re-acquiring the lock; only called from
// inside withLock.
func (s *Store) readLocked() ([]types.HyraidArray, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(hyraiderr.ErrManifestCorrupt, "read %q: %s", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var entries []types.HyraidArray
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(hyraiderr.ErrManifestCorrupt, "parse %q: %s", s.path, err)
	}
	return entries, nil
}

// write is a whole-file atomic replacement: write to a temp file in the
// same directory, then rename over the manifest, so a crash mid-write
// never leaves a half-written manifest behind.
func (s *Store) write(entries []types.HyraidArray) error {
	if entries == nil {
		entries = []types.HyraidArray{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "encode manifest: %s", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".hyraid-manifest-*")
	if err != nil {
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "create temp manifest: %s", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "write temp manifest: %s", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "close temp manifest: %s", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "chmod temp manifest: %s", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "rename temp manifest into place: %s", err)
	}
	return nil
}

// withLock takes a process-scoped flock(2) on the manifest file for the
// duration of fn, enforcing the single-writer assumption spec.md §5 and §9
// say the Controller otherwise only assumes by convention (root-only
// invocation and operator discipline).
func (s *Store) withLock(fn func() error) error {
	lockPath := s.path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "open lock file %q: %s", lockPath, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return errors.Wrapf(hyraiderr.ErrManifestCorrupt, "lock %q: %s", lockPath, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}
