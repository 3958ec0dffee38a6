package wire

import (
	"path/filepath"
	"testing"
)

func TestValidateNormalizesZeroFields(t *testing.T) {
	c := &ConnectionConfig{}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.MaxConcurrentStreams != DefaultMaxConcurrentStreams {
		t.Errorf("MaxConcurrentStreams = %d, want default %d", c.MaxConcurrentStreams, DefaultMaxConcurrentStreams)
	}
	if c.MaxFrameSize != DefaultMaxFrameSize {
		t.Errorf("MaxFrameSize = %d, want default %d", c.MaxFrameSize, DefaultMaxFrameSize)
	}
	if c.HeaderTableSize != DefaultHeaderTableSize {
		t.Errorf("HeaderTableSize = %d, want default %d", c.HeaderTableSize, DefaultHeaderTableSize)
	}
}

func TestValidateRejectsOversizedWindow(t *testing.T) {
	c := DefaultConnectionConfig()
	oversized := int64(MaxWindowSize) + 1
	c.InitialWindowSize = int32(oversized)
	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil error, want rejection of an out-of-range initial window size")
	}
}

func TestLoadServerConfigWritesDefaultOnMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.ListenAddr != ":8443" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8443")
	}
	if cfg.Connection.InitialWindowSize != DefaultWindowSize {
		t.Errorf("InitialWindowSize = %d, want %d", cfg.Connection.InitialWindowSize, DefaultWindowSize)
	}

	// Second load should read the file written by the first, not rewrite it.
	cfg2, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("second LoadServerConfig: %v", err)
	}
	if cfg2.ListenAddr != cfg.ListenAddr {
		t.Fatalf("second load ListenAddr = %q, want %q", cfg2.ListenAddr, cfg.ListenAddr)
	}
}

func TestLoadClientConfigWritesDefaultOnMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.yaml")

	cfg, err := LoadClientConfig(path)
	if err != nil {
		t.Fatalf("LoadClientConfig: %v", err)
	}
	if cfg.DialAddr != "127.0.0.1:8443" {
		t.Errorf("DialAddr = %q, want %q", cfg.DialAddr, "127.0.0.1:8443")
	}
}
