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

package subarray

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"hyraid/internal/hyraiderr"
)

type fakeRunner struct {
	calls [][]string
	out   string
	err   error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.out, f.err
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("/dev/md/hyraid_md_abc1234567"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	if err := ValidateName("md0"); hyraiderr.KindOf(err) != hyraiderr.BadName {
		t.Fatalf("missing-prefix name should be bad-name, got %v", err)
	}
	long := "/dev/md/" + string(make([]byte, 40))
	if err := ValidateName(long); hyraiderr.KindOf(err) != hyraiderr.BadName {
		t.Fatalf("overlong name should be bad-name, got %v", err)
	}
}

func TestCreateRaidArray_BadLevel(t *testing.T) {
	d := NewWithRunner(&fakeRunner{})
	err := d.CreateRaidArray(context.Background(), "/dev/md/hyraid_md_abc", []string{"/dev/sda1", "/dev/sdb1"}, 2)
	if hyraiderr.KindOf(err) != hyraiderr.BadInput {
		t.Fatalf("level 2 should be bad-input, got %v", err)
	}
}

func TestCreateRaidArray_BadMemberPath(t *testing.T) {
	d := NewWithRunner(&fakeRunner{})
	err := d.CreateRaidArray(context.Background(), "/dev/md/hyraid_md_abc", []string{"sda1"}, 1)
	if hyraiderr.KindOf(err) != hyraiderr.BadDevice {
		t.Fatalf("relative member path should be bad-device, got %v", err)
	}
}

func TestCreateRaidArray_ValidCallsMdadm(t *testing.T) {
	fr := &fakeRunner{}
	d := NewWithRunner(fr)
	err := d.CreateRaidArray(context.Background(), "/dev/md/hyraid_md_abc", []string{"/dev/sda1", "/dev/sdb1"}, 1)
	if err != nil {
		t.Fatalf("CreateRaidArray: %v", err)
	}
	if len(fr.calls) != 1 || fr.calls[0][0] != "mdadm" {
		t.Fatalf("expected one mdadm call, got %v", fr.calls)
	}
}

func TestGetDetail_MissingField(t *testing.T) {
	fr := &fakeRunner{out: "Raid Level : raid5\n"}
	d := NewWithRunner(fr)
	_, err := d.GetDetail(context.Background(), "/dev/md/hyraid_md_abc")
	if hyraiderr.KindOf(err) != hyraiderr.ParseError {
		t.Fatalf("missing fields should be parse-error, got %v", err)
	}
}

func TestGetDetail_FullRecord(t *testing.T) {
	out := `/dev/md/hyraid_md_abc:
           Version : 1.2
     Creation Time : Thu Jan  1 00:00:00 1970
        Raid Level : raid5
        Array Size : 1953125632 (1863.00 GiB 2000.00 GB)
     Used Dev Size : 976562816 (931.00 GiB 1000.00 GB)
      Raid Devices : 3
     Total Devices : 3
       Update Time : Thu Jan  1 00:00:00 1970
             State : clean
    Active Devices : 3
   Working Devices : 3
    Failed Devices : 0
     Spare Devices : 0

            Layout : left-symmetric
        Chunk Size : 512K

              Name : hyraid:0
              UUID : 12345678:9abcdef0:12345678:9abcdef0
            Events : 42
`
	fr := &fakeRunner{out: out}
	d := NewWithRunner(fr)
	det, err := d.GetDetail(context.Background(), "/dev/md/hyraid_md_abc")
	if err != nil {
		t.Fatalf("GetDetail: %v", err)
	}
	if det.ArraySize != 1953125632 || det.RaidDevices != 3 || det.Events != 42 {
		t.Fatalf("parsed detail mismatch: %+v", det)
	}
}

func TestIsPartInRaidArray_NoSuperblock(t *testing.T) {
	fr := &fakeRunner{err: errors.Wrap(hyraiderr.ErrEngineError, "exit status 1")}
	d := NewWithRunner(fr)
	found, err := d.IsPartInRaidArray(context.Background(), "/dev/sda1")
	if err != nil {
		t.Fatalf("IsPartInRaidArray: %v", err)
	}
	if found {
		t.Fatal("expected false for a device with no RAID superblock")
	}
}
