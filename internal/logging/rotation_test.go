package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nested", "dir", "test.log")

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
		if rw.FilePath() != logPath {
			t.Errorf("FilePath() = %q, want %q", rw.FilePath(), logPath)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "test.log")
		if err := os.WriteFile(logPath, []byte("initial content\n"), 0644); err != nil {
			t.Fatalf("failed to write initial content: %v", err)
		}

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if rw.CurrentSize() != int64(len("initial content\n")) {
			t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len("initial content\n"))
		}
		if _, err := rw.Write([]byte("appended content\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_ = rw.Close()

		content, _ := os.ReadFile(logPath)
		if !strings.Contains(string(content), "initial content") || !strings.Contains(string(content), "appended content") {
			t.Errorf("content = %q, want both lines", content)
		}
	})
}

// smallWriter returns a writer that rotates after roughly limit bytes.
func smallWriter(t *testing.T, limit int64, backups int, compress bool) (*RotatingWriter, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "xrloop.log")
	rw, err := NewRotatingWriter(logPath, RotationConfig{MaxBackups: backups, Compress: compress})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.limit = limit
	return rw, logPath
}

func TestRotatingWriterRotation(t *testing.T) {
	rw, logPath := smallWriter(t, 100, 2, false)
	defer func() { _ = rw.Close() }()

	line := []byte(strings.Repeat("x", 59) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := rw.Write(line); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected backup .1: %v", err)
	}
	if _, err := os.Stat(logPath + ".2"); err != nil {
		t.Errorf("expected backup .2: %v", err)
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup .3 should have been dropped, stat err = %v", err)
	}
	if rw.CurrentSize() != int64(len(line)) {
		t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len(line))
	}
}

func TestRotatingWriterNoBackups(t *testing.T) {
	rw, logPath := smallWriter(t, 10, 0, false)
	defer func() { _ = rw.Close() }()

	_, _ = rw.Write([]byte("first line\n"))
	_, _ = rw.Write([]byte("second line\n"))

	if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
		t.Errorf("no backups expected, stat err = %v", err)
	}
	content, _ := os.ReadFile(logPath)
	if string(content) != "second line\n" {
		t.Errorf("content = %q, want only the second line", content)
	}
}

func TestRotatingWriterCompression(t *testing.T) {
	rw, logPath := smallWriter(t, 10, 3, true)
	defer func() { _ = rw.Close() }()

	_, _ = rw.Write([]byte("compress me\n"))
	_, _ = rw.Write([]byte("fresh\n"))

	f, err := os.Open(logPath + ".1.gz")
	if err != nil {
		t.Fatalf("expected compressed backup: %v", err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	data, _ := io.ReadAll(zr)
	if string(data) != "compress me\n" {
		t.Errorf("decompressed = %q, want %q", data, "compress me\n")
	}
	if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
		t.Errorf("uncompressed backup should be removed, stat err = %v", err)
	}
}

func TestRotatingWriterConcurrency(t *testing.T) {
	rw, _ := smallWriter(t, 1024, 5, false)
	defer func() { _ = rw.Close() }()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := rw.Write([]byte("concurrent line\n")); err != nil {
					t.Errorf("Write failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRotatingWriterClose(t *testing.T) {
	rw, _ := smallWriter(t, 0, 0, false)

	if err := rw.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() = %v, want nil", err)
	}
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("Write after Close should fail")
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close = %v, want nil", err)
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLoggerWithRotation(dir, LevelInfo, RotationConfig{MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}
	logger.Info("frame submitted", "frame", 1)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	lines := readLines(t, filepath.Join(dir, LogFileName))
	if len(lines) != 1 || lines[0]["msg"] != "frame submitted" {
		t.Errorf("lines = %v, want one frame submitted entry", lines)
	}
}

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()
	if cfg.MaxSizeMB != 10 {
		t.Errorf("MaxSizeMB = %d, want 10", cfg.MaxSizeMB)
	}
	if cfg.MaxBackups != 3 {
		t.Errorf("MaxBackups = %d, want 3", cfg.MaxBackups)
	}
	if cfg.Compress {
		t.Error("Compress = true, want false")
	}
}
