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

package partition

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"hyraid/internal/hyraiderr"
)

// fakeRunner records invocations and returns canned output, the same
// substitution spec.md §9 calls for around the Sub-Array/Volume Drivers,
// applied here to the Partitioner's external-tool calls.
type fakeRunner struct {
	calls   [][]string
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	key := strings.Join(call, " ")
	if err, ok := f.fail[key]; ok {
		return "", err
	}
	for k, out := range f.outputs {
		if strings.HasPrefix(key, k) {
			return out, nil
		}
	}
	return "", nil
}

func TestCreatePartitions(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{}}
	for i := 1; i <= 3; i++ {
		fr.outputs[fmt.Sprintf("sgdisk --info %d", i)] = fmt.Sprintf("Partition unique GUID: 0000000-0000-0000-0000-00000000000%d\n", i)
	}
	p := NewWithRunner(fr)

	paths, err := p.CreatePartitions(context.Background(), "/dev/sdb", []Slice{
		{Size: 500 << 30},
		{Size: 1000 << 30},
	})
	if err != nil {
		t.Fatalf("CreatePartitions: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2", len(paths))
	}
	if !strings.HasPrefix(paths[0], "/dev/disk/by-partuuid/") {
		t.Fatalf("path %q is not a by-partuuid path", paths[0])
	}
}

func TestEnsureGPT_AlreadyGPT(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"blkid -p -o value -s PTTYPE /dev/sdb": "gpt\n",
	}}
	p := NewWithRunner(fr)
	if err := p.EnsureGPT(context.Background(), "/dev/sdb"); err != nil {
		t.Fatalf("EnsureGPT: %v", err)
	}
	for _, c := range fr.calls {
		if c[0] == "sgdisk" {
			t.Fatalf("EnsureGPT called sgdisk on an already-GPT disk: %v", c)
		}
	}
}

func TestValidatePartition_CancelledContext(t *testing.T) {
	fr := &fakeRunner{fail: map[string]error{
		"test -e /dev/disk/by-partuuid/x": errNotFound,
	}}
	p := NewWithRunner(fr)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.ValidatePartition(ctx, "/dev/disk/by-partuuid/x")
	if err == nil {
		t.Fatal("expected an error once the context is already cancelled")
	}
}

func TestCreatePartitions_ParseError(t *testing.T) {
	fr := &fakeRunner{outputs: map[string]string{
		"sgdisk --info 1": "no guid here\n",
	}}
	p := NewWithRunner(fr)
	_, err := p.CreatePartitions(context.Background(), "/dev/sdb", []Slice{{Size: 500 << 30}})
	if hyraiderr.KindOf(err) != hyraiderr.ParseError {
		t.Fatalf("got error kind %q, want parse-error: %v", hyraiderr.KindOf(err), err)
	}
}

var errNotFound = fmt.Errorf("not found")
