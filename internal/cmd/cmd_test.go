package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/xrloop/internal/config"
	xrerrors "github.com/Iron-Ham/xrloop/internal/errors"
	"github.com/Iron-Ham/xrloop/internal/session"
	"github.com/Iron-Ham/xrloop/internal/xr/sim"
)

// resetCommandState clears what a previous Execute left in viper and the
// flag variables.
func resetCommandState() {
	viper.Reset()
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = rootCmd.PersistentFlags().Set("config", "")

	runFrames, runMonitor, runSimulate = 0, false, false
	extensionsFormat, extensionsSimulate = "text", false
	logsDir, logsSessionID, logsPhase = "", "", ""
	logsTail, logsFollow = 50, false
	logsLevel, logsSince, logsGrep, logsFormat = "", "", "", "text"
}

// executeCommand runs the root command with args and returns captured output
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetCommandState()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// isolate points the config and state directories at a temp dir.
func isolate(t *testing.T) (configDir, stateDir string) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(base, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(base, "state"))
	return filepath.Join(base, "config", "xrloop"), filepath.Join(base, "state", "xrloop")
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "xrloop" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "xrloop")
	}

	expectedCmds := []string{"run", "extensions", "config", "logs", "status"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, name := range expectedCmds {
		if !cmdMap[name] {
			t.Errorf("expected subcommand %q not found", name)
		}
	}

	if rootCmd.PersistentFlags().ShorthandLookup("c") == nil {
		t.Error("expected -c shorthand for --config")
	}
}

func TestRun_RequiresSimulate(t *testing.T) {
	isolate(t)
	_, err := executeCommand(t, "run")
	if err == nil || !strings.Contains(err.Error(), "--simulate") {
		t.Errorf("run without --simulate error = %v, want a hint to pass --simulate", err)
	}
}

func TestRun_Simulated(t *testing.T) {
	_, stateDir := isolate(t)

	out, err := executeCommand(t, "run", "--simulate", "--frames", "3")
	if err != nil {
		t.Fatalf("run error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Rendered 3 frames (6 eye passes, 0 cleared eyes), 0 failed") {
		t.Errorf("summary missing from output:\n%s", out)
	}
	if !strings.Contains(out, "1 initialized, 1 torn down") {
		t.Errorf("expected one bring-up and the final teardown:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(stateDir, session.LockFileName)); !os.IsNotExist(err) {
		t.Errorf("device lock not released: %v", err)
	}

	logs, err := executeCommand(t, "logs", "--dir", stateDir, "-n", "0", "--phase", "driver")
	if err != nil {
		t.Fatalf("logs error = %v", err)
	}
	for _, want := range []string{"driver started", "frame limit reached"} {
		if !strings.Contains(logs, want) {
			t.Errorf("driver log missing %q:\n%s", want, logs)
		}
	}
}

func TestRun_DeviceBusy(t *testing.T) {
	_, stateDir := isolate(t)
	lock, err := session.AcquireDeviceLock(stateDir, "simulated", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	_, err = executeCommand(t, "run", "--simulate", "--frames", "1")
	if !errors.Is(err, session.ErrDeviceBusy) {
		t.Errorf("run with a held lock error = %v, want ErrDeviceBusy", err)
	}
}

func TestExtensions(t *testing.T) {
	isolate(t)

	t.Run("text", func(t *testing.T) {
		out, err := executeCommand(t, "extensions", "--simulate")
		if err != nil {
			t.Fatalf("extensions error = %v", err)
		}
		if !strings.Contains(out, "Required: XR_KHR_opengl_enable (advertised)") {
			t.Errorf("missing required line:\n%s", out)
		}
		if !strings.Contains(out, "* XR_KHR_opengl_enable") {
			t.Errorf("required extension not marked enabled:\n%s", out)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := executeCommand(t, "extensions", "--simulate", "--format", "yaml")
		if err != nil {
			t.Fatalf("extensions error = %v", err)
		}
		var report extensionReport
		if err := yaml.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("output is not yaml: %v\n%s", err, out)
		}
		if !report.Satisfied || report.Required != "XR_KHR_opengl_enable" {
			t.Errorf("report = %+v", report)
		}
		if len(report.Extensions) != 4 {
			t.Errorf("extensions = %d, want 4", len(report.Extensions))
		}
	})

	t.Run("bad format", func(t *testing.T) {
		if _, err := executeCommand(t, "extensions", "--simulate", "--format", "xml"); err == nil {
			t.Error("expected an error for an unknown format")
		}
	})
}

func TestBuildExtensionReport(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.RuntimeConfig
		wantEnabled []string
		wantErr     error
	}{
		{
			name:        "required only",
			cfg:         config.RuntimeConfig{RequiredExtension: "XR_KHR_opengl_enable"},
			wantEnabled: []string{"XR_KHR_opengl_enable"},
		},
		{
			name: "optional patterns",
			cfg: config.RuntimeConfig{
				RequiredExtension:  "XR_KHR_opengl_enable",
				OptionalExtensions: []string{"XR_EXT_*_controller"},
			},
			wantEnabled: []string{"XR_EXT_hp_mixed_reality_controller", "XR_EXT_samsung_odyssey_controller", "XR_KHR_opengl_enable"},
		},
		{
			name:    "missing capability",
			cfg:     config.RuntimeConfig{RequiredExtension: "XR_KHR_vulkan_enable"},
			wantErr: xrerrors.ErrMissingCapability,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := buildExtensionReport(sim.New(), tt.cfg)
			if report == nil {
				t.Fatalf("report is nil, err = %v", err)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("err = %v, want %v", err, tt.wantErr)
				}
				if report.Satisfied {
					t.Error("Satisfied = true with a missing capability")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var enabled []string
			for _, e := range report.Extensions {
				if e.Enabled {
					enabled = append(enabled, e.Name)
				}
			}
			if fmt.Sprint(enabled) != fmt.Sprint(tt.wantEnabled) {
				t.Errorf("enabled = %v, want %v", enabled, tt.wantEnabled)
			}
		})
	}
}

func TestConfigInit(t *testing.T) {
	configDir, _ := isolate(t)

	out, err := executeCommand(t, "config", "init")
	if err != nil {
		t.Fatalf("config init error = %v", err)
	}
	path := filepath.Join(configDir, "config.yaml")
	if !strings.Contains(out, path) {
		t.Errorf("output does not name %s:\n%s", path, out)
	}

	// The written file must load cleanly and match the defaults.
	resetCommandState()
	config.SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	def := config.Default()
	if cfg.Runtime.RequiredExtension != def.Runtime.RequiredExtension ||
		cfg.Session != def.Session ||
		cfg.Render != def.Render ||
		cfg.Tracking != def.Tracking ||
		cfg.Loop != def.Loop ||
		cfg.Monitor != def.Monitor ||
		cfg.Logging != def.Logging {
		t.Errorf("init file differs from defaults:\n got %+v\nwant %+v", cfg, def)
	}

	if _, err := executeCommand(t, "config", "init"); err == nil {
		t.Error("second config init should fail")
	}
}

func TestConfigSet(t *testing.T) {
	configDir, _ := isolate(t)
	path := filepath.Join(configDir, "config.yaml")

	out, err := executeCommand(t, "config", "set", "tracking.avatar_scale", "1.5")
	if err != nil {
		t.Fatalf("config set error = %v", err)
	}
	if !strings.Contains(out, "Set tracking.avatar_scale = 1.5") {
		t.Errorf("unexpected output:\n%s", out)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("written config unreadable: %v", err)
	}
	if got := v.GetFloat64("tracking.avatar_scale"); got != 1.5 {
		t.Errorf("tracking.avatar_scale = %v, want 1.5", got)
	}

	if _, err := executeCommand(t, "-c", path, "config", "set", "tracking.avatar_scale", "-2"); err == nil {
		t.Error("non-positive avatar scale should be rejected")
	}
	v = viper.New()
	v.SetConfigFile(path)
	_ = v.ReadInConfig()
	if got := v.GetFloat64("tracking.avatar_scale"); got != 1.5 {
		t.Errorf("rejected value was written: avatar_scale = %v", got)
	}
}

func TestParseSetting(t *testing.T) {
	tests := []struct {
		key, value string
		want       any
		wantErr    bool
	}{
		{"render.immersive", "false", false, false},
		{"render.immersive", "maybe", nil, true},
		{"loop.max_frame_failures", "5", 5, false},
		{"loop.max_frame_failures", "five", nil, true},
		{"tracking.yaw_turn_degrees", "-90", -90.0, false},
		{"tracking.offset_y", "up", nil, true},
		{"render.blend_mode", "additive", "additive", false},
		{"session.unknown", "x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got, err := parseSetting(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSetting() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseSetting() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	out, err := executeCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	for _, want := range []string{"# Config file: (none - using defaults)", "required_extension: XR_KHR_opengl_enable", "max_frame_failures: 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigPath(t *testing.T) {
	configDir, _ := isolate(t)
	out, err := executeCommand(t, "config", "path")
	if err != nil {
		t.Fatalf("config path error = %v", err)
	}
	if !strings.Contains(out, filepath.Join(configDir, "config.yaml")+" (not created)") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestStatus(t *testing.T) {
	_, stateDir := isolate(t)

	out, err := executeCommand(t, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "No driver running") {
		t.Errorf("unexpected output:\n%s", out)
	}

	lock, err := session.AcquireDeviceLock(stateDir, "simulated", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = lock.Release() }()

	out, err = executeCommand(t, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Driver running") || !strings.Contains(out, fmt.Sprintf("PID:     %d", os.Getpid())) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

const sampleLog = `{"time":"2026-03-01T10:00:00Z","level":"INFO","msg":"driver started","phase":"driver"}
{"time":"2026-03-01T10:00:01Z","level":"WARN","msg":"frame aborted","phase":"frame","stage":"acquire"}
{"time":"2026-03-01T10:00:02Z","level":"ERROR","msg":"instance lost","phase":"events","session_id":"s-1"}
not json
`

func writeSampleLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "xrloop.log"), []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLogs(t *testing.T) {
	isolate(t)
	dir := writeSampleLog(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all",
			args: []string{"-n", "0"},
			want: []string{"driver started", "frame aborted", "instance lost"},
		},
		{
			name:    "level",
			args:    []string{"--level", "warn"},
			want:    []string{"frame aborted", "instance lost"},
			notWant: []string{"driver started"},
		},
		{
			name:    "tail",
			args:    []string{"-n", "1"},
			want:    []string{"instance lost"},
			notWant: []string{"frame aborted"},
		},
		{
			name:    "grep attributes",
			args:    []string{"--grep", "acq.ire"},
			want:    []string{"frame aborted"},
			notWant: []string{"instance lost"},
		},
		{
			name:    "session",
			args:    []string{"--session", "s-1"},
			want:    []string{"instance lost"},
			notWant: []string{"driver started"},
		},
		{
			name: "csv",
			args: []string{"--format", "csv", "--phase", "frame"},
			want: []string{"timestamp,level,message", "frame aborted"},
		},
		{
			name: "no match",
			args: []string{"--grep", "nothing-like-this"},
			want: []string{"No matching log entries found."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, append([]string{"logs", "--dir", dir}, tt.args...)...)
			if err != nil {
				t.Fatalf("logs error = %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestLogs_Errors(t *testing.T) {
	isolate(t)

	out, err := executeCommand(t, "logs", "--dir", t.TempDir())
	if err != nil {
		t.Fatalf("logs on empty dir error = %v", err)
	}
	if !strings.Contains(out, "No logs found") {
		t.Errorf("unexpected output:\n%s", out)
	}

	dir := writeSampleLog(t)
	if _, err := executeCommand(t, "logs", "--dir", dir, "--since", "yesterday"); err == nil {
		t.Error("expected an error for a bad --since")
	}
	if _, err := executeCommand(t, "logs", "--dir", dir, "--grep", "("); err == nil {
		t.Error("expected an error for a bad --grep")
	}
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFollowLogs(t *testing.T) {
	dir := writeSampleLog(t)
	path := filepath.Join(dir, "xrloop.log")

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- followLogs(ctx, out, path, logQuery{})
	}()
	waitFor(t, func() bool { return strings.Contains(out.String(), "Following") })

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	// Written in two parts to exercise a half-written line.
	_, _ = f.WriteString(`{"time":"2026-03-01T10:00:03Z","level":"INFO",`)
	time.Sleep(150 * time.Millisecond)
	_, _ = f.WriteString(`"msg":"session rebuilt","phase":"driver"}` + "\n")
	_ = f.Close()

	waitFor(t, func() bool { return strings.Contains(out.String(), "session rebuilt") })
	if strings.Contains(out.String(), "driver started") {
		t.Error("follow should start at the end of the file")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("followLogs() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("followLogs did not stop after cancel")
	}
}
