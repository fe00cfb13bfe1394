// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package lifecycle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// replaceOnLock swaps the file at path for a new one the first n times
// Lock is between open and flock.
func replaceOnLock(t *testing.T, path string, n int) *int {
	t.Helper()
	calls := 0
	orig := beforeFlock
	beforeFlock = func() {
		calls++
		if calls > n {
			return
		}
		if err := os.Remove(path); err != nil {
			t.Errorf("remove PID file: %v", err)
		}
		if err := os.WriteFile(path, []byte("4242\n"), 0o600); err != nil {
			t.Errorf("recreate PID file: %v", err)
		}
	}
	t.Cleanup(func() { beforeFlock = orig })
	return &calls
}

func TestPIDFile_LockRetriesWhenFileReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallman.pid")
	calls := replaceOnLock(t, path, 1)

	pf := NewPIDFile(path)
	previous, err := pf.Lock()
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer pf.Release()

	if *calls != 2 {
		t.Errorf("open attempts = %d, want 2", *calls)
	}
	if previous != 4242 {
		t.Errorf("previous PID = %d, want 4242 from the replacement file", previous)
	}
	if !linkedAt(pf.file, path) {
		t.Error("lock is held on a file no longer linked at the path")
	}

	// A second handle must see the lock on the file at the path.
	if !NewPIDFile(path).Held() {
		t.Error("Held() = false for the locked file")
	}
}

func TestPIDFile_LockGivesUpWhenFileKeepsChanging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallman.pid")
	calls := replaceOnLock(t, path, lockAttempts)

	pf := NewPIDFile(path)
	_, err := pf.Lock()
	if err == nil {
		pf.Release()
		t.Fatal("Lock() succeeded on a file replaced on every attempt")
	}
	if !strings.Contains(err.Error(), "replaced") {
		t.Errorf("Lock() error = %v", err)
	}
	if *calls != lockAttempts {
		t.Errorf("open attempts = %d, want %d", *calls, lockAttempts)
	}
	if pf.file != nil {
		t.Error("PIDFile kept a descriptor after failing")
	}
}

func TestPIDFile_ReleaseRemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallman.pid")
	pf := NewPIDFile(path)
	if _, err := pf.Lock(); err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	if err := pf.Write(os.Getpid()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := pf.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("PID file still present after Release: %v", err)
	}
}
