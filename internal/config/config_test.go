package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	logx "pulseboard/pkg/logx"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleYAML = `
log:
  level: debug
  console: true
scheduler:
  batch_window: 625us
  min_update_interval: 50ms
  tick_every: 1ms
  queue_size: 64
history:
  enabled: true
  path: /tmp/pulseboard.db
  retention: 24h
sources:
  - name: clock
    kind: clock
    spec: "@every 1s"
    priority: 1
    lead: 1ms
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "cfg.yaml", sampleYAML), logx.Nop())

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Scheduler.QueueSize != 64 {
		t.Fatalf("queue size = %d, want 64", cfg.Scheduler.QueueSize)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "clock" {
		t.Fatalf("sources = %+v", cfg.Sources)
	}
	if got := cfg.Scheduler.BatchWindow.Std(); got != 625*time.Microsecond {
		t.Fatalf("batch_window = %v, want 625µs", got)
	}
	if got := cfg.Sources[0].Lead.Std(); got != time.Millisecond {
		t.Fatalf("lead = %v, want 1ms", got)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "cfg.yaml", "nonsense_field: true\n"), logx.Nop())
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseRejectsInvalidDurations(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "cfg.yaml", "scheduler:\n  batch_window: banana\n"), logx.Nop())
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()
	m := NewManager(filepath.Join(t.TempDir(), "missing.yaml"), logx.Nop())

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Fatal("default config has no sources")
	}
	if m.Get() != cfg {
		t.Fatal("Load did not commit the default config")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults ok", mutate: func(*Config) {}},
		{name: "source without name", mutate: func(c *Config) { c.Sources[0].Name = "" }, wantErr: true},
		{name: "source without spec", mutate: func(c *Config) { c.Sources[0].Spec = "" }, wantErr: true},
		{name: "zero priority", mutate: func(c *Config) { c.Sources[0].Priority = 0 }, wantErr: true},
		{name: "negative priority", mutate: func(c *Config) { c.Sources[0].Priority = -2 }, wantErr: true},
		{name: "history enabled without path", mutate: func(c *Config) { c.History.Enabled = true }, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

// An absent source priority is filled in as 1 at parse time, so the loaded
// config never carries a value the scheduler would reject.
func TestParseDefaultsAbsentPriority(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "cfg.yaml", `
sources:
  - name: clock
    spec: "@every 1s"
`), logx.Nop())

	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := cfg.Sources[0].Priority; got != 1 {
		t.Fatalf("priority = %d, want default 1", got)
	}
	if got := cfg.Sources[0].Lead.Std(); got != time.Millisecond {
		t.Fatalf("lead = %v, want default 1ms", got)
	}
}

func TestParseRejectsNegativePriority(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "cfg.yaml", `
sources:
  - name: clock
    spec: "@every 1s"
    priority: -1
`), logx.Nop())

	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for negative priority")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "plain", raw: `"2s"`, want: 2 * time.Second},
		{name: "sub-millisecond", raw: `"625us"`, want: 625 * time.Microsecond},
		{name: "empty means absent", raw: `""`, want: 0},
		{name: "negative", raw: `"-2s"`, wantErr: true},
		{name: "garbage", raw: `"banana"`, wantErr: true},
		{name: "bare number", raw: `50`, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.raw), &d)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Unmarshal(%s): expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.raw, err)
			}
			if d.Std() != tt.want {
				t.Fatalf("Unmarshal(%s) = %v, want %v", tt.raw, d.Std(), tt.want)
			}
		})
	}
}

func TestDurationOr(t *testing.T) {
	t.Parallel()
	if got := Duration(0).Or(5 * time.Second); got != 5*time.Second {
		t.Fatalf("absent Or = %v, want 5s", got)
	}
	if got := Duration(2 * time.Second).Or(5 * time.Second); got != 2*time.Second {
		t.Fatalf("set Or = %v, want 2s", got)
	}
}

func TestDurationMarshalRoundTrip(t *testing.T) {
	t.Parallel()
	b, err := json.Marshal(Duration(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `"50ms"` {
		t.Fatalf("Marshal = %s, want \"50ms\"", b)
	}
	var d Duration
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if d.Std() != 50*time.Millisecond {
		t.Fatalf("round trip = %v, want 50ms", d.Std())
	}
}
