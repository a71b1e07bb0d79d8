// Package lock keeps one wamcpd process per session. The holder owns the
// session's WhatsApp device store and message database until it exits.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FileName is the lock file inside a session directory.
const FileName = "LOCK"

// BusyError is returned by Acquire when another process serves the session.
// PID is 0 if the owner's record could not be read.
type BusyError struct {
	PID  int
	Path string
}

func (e *BusyError) Error() string {
	if e.PID == 0 {
		return fmt.Sprintf("session is in use by another wamcpd (%s)", e.Path)
	}
	return fmt.Sprintf("session is in use by wamcpd pid %d; stop it or choose another --session (%s)", e.PID, e.Path)
}

// Lock is a held session lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire locks sessionDir, creating it if needed. The lock is an flock on
// FileName, so it disappears with the process; the file records the owner's
// PID for Holder and for BusyError.
func Acquire(sessionDir string) (*Lock, error) {
	if err := os.MkdirAll(sessionDir, 0700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	path := filepath.Join(sessionDir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		return nil, &BusyError{PID: ownerPID(path), Path: path}
	}
	if err := recordOwner(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("record lock owner: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

func recordOwner(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	return err
}

// Holder returns the PID of the process serving sessionDir, or 0 when no
// one does. It tests the lock without keeping it.
func Holder(sessionDir string) int {
	path := filepath.Join(sessionDir, FileName)
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()

	// A file we can lock was left behind by a dead process.
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return 0
	}
	return ownerPID(path)
}

// Release removes the lock file and drops the lock. It is safe on a nil or
// already released Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func ownerPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if v, ok := strings.CutPrefix(line, "pid="); ok {
			pid, _ := strconv.Atoi(v)
			return pid
		}
	}
	return 0
}
