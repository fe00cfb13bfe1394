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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

var (
	// ErrPIDFileLocked is returned when another process holds the PID file lock.
	ErrPIDFileLocked = errors.New("PID file is locked by another process")

	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrUnsafeDirectory is returned when the PID file parent is world-writable.
	ErrUnsafeDirectory = errors.New("PID file directory is world-writable")
)

// PIDFile is a PID file guarded by an exclusive flock. The file is opened
// with O_NOFOLLOW so a planted symlink cannot redirect the write.
type PIDFile struct {
	path string
	file *os.File
}

// NewPIDFile creates a PIDFile for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the file path.
func (p *PIDFile) Path() string { return p.path }

// lockAttempts bounds how often Lock retries after losing a race with a
// releasing owner.
const lockAttempts = 5

// beforeFlock runs between opening the file and locking it. Tests use it
// to replace the file under an open descriptor.
var beforeFlock = func() {}

// Lock opens the file and takes the exclusive lock without writing to it.
// It returns the PID previously recorded in the file, or 0 when the file
// was empty or unreadable. ErrPIDFileLocked means another process holds
// the lock; the returned PID is then the owner.
//
// A lock taken on an inode that is no longer linked at the path (the old
// owner removed it in Release) is dropped and the lock retried.
func (p *PIDFile) Lock() (int, error) {
	dir := filepath.Dir(p.path)
	if err := verifyDirectorySafety(dir); err != nil {
		return 0, fmt.Errorf("unsafe PID file location: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return 0, fmt.Errorf("failed to create PID file directory: %w", err)
	}

	for attempt := 0; attempt < lockAttempts; attempt++ {
		f, err := os.OpenFile(p.path, os.O_RDWR|os.O_CREATE|syscall.O_NOFOLLOW, 0o600)
		if err != nil {
			return 0, fmt.Errorf("failed to open PID file: %w", err)
		}

		beforeFlock()

		if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
			previous, _ := readPID(f)
			f.Close()
			if errors.Is(err, syscall.EWOULDBLOCK) {
				return previous, ErrPIDFileLocked
			}
			return 0, fmt.Errorf("failed to lock PID file: %w", err)
		}

		if !linkedAt(f, p.path) {
			_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			f.Close()
			continue
		}

		previous, _ := readPID(f)
		p.file = f
		return previous, nil
	}
	return 0, fmt.Errorf("failed to lock PID file %s: file replaced %d times while locking", p.path, lockAttempts)
}

// linkedAt reports whether f is still the file found at path.
func linkedAt(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	current, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, current)
}

// Write replaces the file content with pid. The lock must be held.
func (p *PIDFile) Write(pid int) error {
	if p.file == nil {
		return fmt.Errorf("PID file %s is not locked", p.path)
	}
	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate PID file: %w", err)
	}
	if _, err := p.file.WriteAt([]byte(strconv.Itoa(pid)+"\n"), 0); err != nil {
		return fmt.Errorf("failed to write PID: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync PID file: %w", err)
	}
	return nil
}

// Read reads the PID recorded in the file.
func (p *PIDFile) Read() (int, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return readPID(f)
}

// Held reports whether some process currently holds the lock.
func (p *PIDFile) Held() bool {
	if p.file != nil {
		return true
	}
	f, err := os.Open(p.path)
	if err != nil {
		return false
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err != nil {
		return errors.Is(err, syscall.EWOULDBLOCK)
	}
	_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	return false
}

// Release removes the file and drops the lock. The file is removed while
// still locked so a new owner's file is never deleted.
func (p *PIDFile) Release() error {
	if p.file == nil {
		return nil
	}
	var err error
	if rmErr := os.Remove(p.path); rmErr != nil && !os.IsNotExist(rmErr) {
		err = fmt.Errorf("failed to remove PID file: %w", rmErr)
	}
	_ = syscall.Flock(int(p.file.Fd()), syscall.LOCK_UN)
	p.file.Close()
	p.file = nil
	return err
}

// unlock drops the lock without removing the file.
func (p *PIDFile) unlock() {
	if p.file == nil {
		return
	}
	p.file.Close()
	p.file = nil
}

func readPID(r io.ReaderAt) (int, error) {
	buf := make([]byte, 32)
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	s := strings.TrimSpace(string(buf[:n]))
	if s == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPID, s)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}
	return pid, nil
}

// verifyDirectorySafety checks that the directory is not world-writable.
func verifyDirectorySafety(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		// Created later with 0700.
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	mode := info.Mode()
	if mode&0o002 != 0 && mode&os.ModeSticky == 0 {
		return fmt.Errorf("%w: %s has mode %04o", ErrUnsafeDirectory, dir, mode&os.ModePerm)
	}
	return nil
}
