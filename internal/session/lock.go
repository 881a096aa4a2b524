package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Iron-Ham/xrloop/internal/logging"
)

// LockFileName is the name of the device lock file within the state directory.
const LockFileName = "xrloop.lock"

// ErrDeviceBusy is returned when another live xrloop process owns the runtime.
var ErrDeviceBusy = errors.New("runtime is driven by another xrloop process")

// DeviceLock marks this process as the single driver of the runtime. Two
// drivers would compete for the same compositor frame slots.
type DeviceLock struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	Runtime   string    `json:"runtime"`
	StartedAt time.Time `json:"started_at"`

	path   string
	logger *logging.Logger
}

// AcquireDeviceLock takes the lock in dir. A lock left behind by a dead
// process is removed first. runtime names the runtime being driven
// ("simulated" or a loader name) and is informational. logger may be nil.
func AcquireDeviceLock(dir, runtime string, logger *logging.Logger) (*DeviceLock, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, LockFileName)

	if existing, err := ReadDeviceLock(path); err == nil {
		if processAlive(existing.PID) {
			logger.Error("device lock held", "pid", existing.PID, "hostname", existing.Hostname)
			return nil, fmt.Errorf("%w: PID %d on %s", ErrDeviceBusy, existing.PID, existing.Hostname)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale device lock: %w", err)
		}
		logger.Warn("stale device lock removed", "old_pid", existing.PID)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	lock := &DeviceLock{
		PID:       os.Getpid(),
		Hostname:  hostname,
		Runtime:   runtime,
		StartedAt: time.Now(),
		path:      path,
		logger:    logger,
	}

	data, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal device lock: %w", err)
	}

	// O_EXCL loses the race cleanly if another process created the file
	// between the stale check and here.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if winner, readErr := ReadDeviceLock(path); readErr == nil {
				return nil, fmt.Errorf("%w: PID %d on %s", ErrDeviceBusy, winner.PID, winner.Hostname)
			}
			return nil, ErrDeviceBusy
		}
		return nil, fmt.Errorf("create device lock: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write device lock: %w", err)
	}

	logger.Info("device lock acquired", "pid", lock.PID, "runtime", runtime)
	return lock, nil
}

// Release removes the lock file if this process still owns it. Safe to call
// more than once and on a nil lock.
func (l *DeviceLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	existing, err := ReadDeviceLock(l.path)
	if err != nil || existing.PID != l.PID {
		return nil
	}
	if err := os.Remove(l.path); err != nil {
		return err
	}
	if l.logger != nil {
		l.logger.Info("device lock released")
	}
	return nil
}

// Path returns the lock file path.
func (l *DeviceLock) Path() string { return l.path }

// Alive reports whether the owning process is still running.
func (l *DeviceLock) Alive() bool { return processAlive(l.PID) }

// ReadDeviceLock parses a lock file.
func ReadDeviceLock(path string) (*DeviceLock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lock DeviceLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse device lock: %w", err)
	}
	lock.path = path
	return &lock, nil
}

// processAlive sends signal 0, which checks existence without delivering
// anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}
