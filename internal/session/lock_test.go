package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireDeviceLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireDeviceLock(dir, "simulated", nil)
	if err != nil {
		t.Fatalf("AcquireDeviceLock() error = %v", err)
	}
	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
	}
	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("Path() = %q, want %q", lock.Path(), filepath.Join(dir, LockFileName))
	}

	read, err := ReadDeviceLock(lock.Path())
	if err != nil {
		t.Fatalf("ReadDeviceLock() error = %v", err)
	}
	if read.Runtime != "simulated" {
		t.Errorf("Runtime = %q, want %q", read.Runtime, "simulated")
	}
	if !read.Alive() {
		t.Error("Alive() = false for the current process")
	}

	_, err = AcquireDeviceLock(dir, "simulated", nil)
	if !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("second AcquireDeviceLock() error = %v, want ErrDeviceBusy", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("lock file still exists after Release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
}

func TestAcquireDeviceLock_StaleLock(t *testing.T) {
	dir := t.TempDir()

	// A PID that cannot belong to a live process.
	stale := DeviceLock{PID: 1 << 30, Hostname: "elsewhere", StartedAt: time.Now().Add(-time.Hour)}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, LockFileName), data, 0o644); err != nil {
		t.Fatal(err)
	}

	if stale.Alive() {
		t.Fatal("Alive() = true for an impossible PID")
	}

	lock, err := AcquireDeviceLock(dir, "simulated", nil)
	if err != nil {
		t.Fatalf("AcquireDeviceLock() over stale lock error = %v", err)
	}
	defer func() { _ = lock.Release() }()

	if lock.PID != os.Getpid() {
		t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
	}
}

func TestRelease_NotOwner(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireDeviceLock(dir, "simulated", nil)
	if err != nil {
		t.Fatal(err)
	}

	foreign := *lock
	foreign.PID = lock.PID + 1
	if err := foreign.Release(); err != nil {
		t.Fatalf("Release() by non-owner error = %v", err)
	}
	if _, err := os.Stat(lock.Path()); err != nil {
		t.Errorf("lock file removed by non-owner: %v", err)
	}

	var nilLock *DeviceLock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
	_ = lock.Release()
}
