package uow

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseConfig_FullPipeline(t *testing.T) {

	data := []byte(`
queue:
  capacity: 2048
destination:
  net:
    host: collector.internal
    port: 24224
    network: tls
    dial_timeout: 5s
format:
  emf:
    namespace: Ducks
    dimensions:
      - [Operation]
      - [Operation, Region]
    sampling: true
sampler:
  congressional:
    target_rate: 100
    window: 30s
`)

	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	if cfg.Queue.Capacity != 2048 {
		t.Errorf("expected capacity 2048, got: %d", cfg.Queue.Capacity)
	}
	if cfg.Destination.Net.Host != "collector.internal" || cfg.Destination.Net.Network != "tls" {
		t.Errorf("unexpected destination: %+v", cfg.Destination.Net)
	}
	if cfg.Destination.Net.DialTimeout != 5*time.Second {
		t.Errorf("expected 5s dial timeout, got: %v", cfg.Destination.Net.DialTimeout)
	}
	if cfg.Format.EMF.Namespace != "Ducks" || len(cfg.Format.EMF.Dimensions) != 2 {
		t.Errorf("unexpected format: %+v", cfg.Format.EMF)
	}
	if cfg.Sampler.Congressional.TargetRate != 100 {
		t.Errorf("unexpected sampler: %+v", cfg.Sampler.Congressional)
	}
}

func TestParseConfig_Validation(t *testing.T) {

	tests := []struct {
		name string
		yaml string
	}{
		{"two destinations", "destination:\n  stdout: true\n  path: /tmp/out\n"},
		{"net without host", "destination:\n  net:\n    port: 1\n"},
		{"two formats", "format:\n  emf: {}\n  cbor: {}\n"},
		{"fraction out of range", "sampler:\n  fraction: 1.5\n"},
		{"two samplers", "sampler:\n  fraction: 0.5\n  congressional:\n    target_rate: 10\n"},
	}
	for i := 0; i < len(tests); i++ {
		tt := tests[i]
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected validation to reject: %s", tt.yaml)
			}
		})
	}
}

func TestParseConfig_EmptyDefaults(t *testing.T) {

	cfg, err := ParseConfig(nil)
	if err != nil {
		t.Fatalf("failed to parse empty config: %v", err)
	}
	if _, ok := cfg.buildFormat().(*EMFFormat); !ok {
		t.Errorf("expected EMF as the default format")
	}
	if cfg.buildSampler() != nil {
		t.Errorf("expected no sampler by default")
	}
}

func TestLoadConfig_File(t *testing.T) {

	path := filepath.Join(t.TempDir(), "uow.yaml")
	if err := os.WriteFile(path, []byte("queue:\n  capacity: 16\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Queue.Capacity != 16 {
		t.Errorf("expected capacity 16, got: %d", cfg.Queue.Capacity)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestConfig_BuildFormatSelection(t *testing.T) {

	msgpackCfg, err := ParseConfig([]byte("format:\n  msgpack:\n    tag: metrics\n"))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if _, ok := msgpackCfg.buildFormat().(*MsgpackFormat); !ok {
		t.Errorf("expected the msgpack format")
	}

	cborCfg, err := ParseConfig([]byte("format:\n  cbor: {}\n"))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if _, ok := cborCfg.buildFormat().(*CBORFormat); !ok {
		t.Errorf("expected the cbor format")
	}
}

func TestConfig_BuildSamplerSelection(t *testing.T) {

	fracCfg, err := ParseConfig([]byte("sampler:\n  fraction: 0.25\n"))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if _, ok := fracCfg.buildSampler().(*FixedFractionSampler); !ok {
		t.Errorf("expected the fixed-fraction sampler")
	}

	congCfg, err := ParseConfig([]byte("sampler:\n  congressional:\n    target_rate: 50\n"))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}
	if _, ok := congCfg.buildSampler().(*CongressionalSampler); !ok {
		t.Errorf("expected the congressional sampler")
	}
}

func TestConfig_AttachToFile(t *testing.T) {

	path := filepath.Join(t.TempDir(), "metrics.out")
	cfg, err := ParseConfig([]byte("destination:\n  path: " + path + "\n"))
	if err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	handle, err := cfg.Attach()
	if err != nil {
		t.Fatalf("failed to attach pipeline: %v", err)
	}

	Sink().Append(taggedEntry(1))
	handle.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read destination file: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected a framed record in the destination file")
	}
}
