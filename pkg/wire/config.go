package wire

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectionConfig holds the tunables a Connection applies to every stream
// it multiplexes.
type ConnectionConfig struct {
	InitialWindowSize    int32 `yaml:"initial_window_size"`
	MaxConcurrentStreams int   `yaml:"max_concurrent_streams"`
	MaxFrameSize         int   `yaml:"max_frame_size"`
	MaxHeaderListSize    int   `yaml:"max_header_list_size"`
	HeaderTableSize      int   `yaml:"header_table_size"`

	StreamIdleTimeout     time.Duration `yaml:"stream_idle_timeout"`
	ConnectionIdleTimeout time.Duration `yaml:"connection_idle_timeout"`
	PingTimeout           time.Duration `yaml:"ping_timeout"`
}

// DefaultConnectionConfig returns the settings this implementation
// advertises until a peer's SETTINGS frame says otherwise.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		InitialWindowSize:     DefaultWindowSize,
		MaxConcurrentStreams:  DefaultMaxConcurrentStreams,
		MaxFrameSize:          DefaultMaxFrameSize,
		MaxHeaderListSize:     0, // 0 means unbounded
		HeaderTableSize:       DefaultHeaderTableSize,
		StreamIdleTimeout:     5 * time.Minute,
		ConnectionIdleTimeout: 10 * time.Minute,
		PingTimeout:           30 * time.Second,
	}
}

// Validate rejects an initial_window_size outside 0..MaxWindowSize (0 itself
// is kept as given) and normalizes a zero/negative max_concurrent_streams,
// max_frame_size, header_table_size or timeout to its default rather than
// letting it silently disable the corresponding behavior. An oversized
// max_frame_size also falls back to the default; max_header_list_size is
// left as given, 0 meaning unbounded.
func (c *ConnectionConfig) Validate() error {
	if c.InitialWindowSize < 0 || c.InitialWindowSize > MaxWindowSize {
		return fmt.Errorf("wire: invalid initial_window_size %d", c.InitialWindowSize)
	}
	if c.MaxConcurrentStreams <= 0 {
		c.MaxConcurrentStreams = DefaultMaxConcurrentStreams
	}
	if c.MaxFrameSize <= 0 || c.MaxFrameSize > MaxFrameSize {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.HeaderTableSize <= 0 {
		c.HeaderTableSize = DefaultHeaderTableSize
	}
	if c.StreamIdleTimeout <= 0 {
		c.StreamIdleTimeout = 5 * time.Minute
	}
	if c.ConnectionIdleTimeout <= 0 {
		c.ConnectionIdleTimeout = 10 * time.Minute
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 30 * time.Second
	}
	return nil
}

// ServerConfig is the top-level YAML document a server process loads at
// startup.
type ServerConfig struct {
	ListenAddr string           `yaml:"listen_addr"`
	Connection ConnectionConfig `yaml:"connection"`
	Socket     SocketConfig     `yaml:"socket"`
}

// ClientConfig is the top-level YAML document a client process loads at
// startup.
type ClientConfig struct {
	DialAddr   string           `yaml:"dial_addr"`
	Connection ConnectionConfig `yaml:"connection"`
	Socket     SocketConfig     `yaml:"socket"`
}

// SocketConfig controls platform-level listener/dial tuning applied by
// Dial, Listen and AcceptTuned (via socket_linux.go / socket_other.go).
type SocketConfig struct {
	NoDelay      bool          `yaml:"no_delay"`
	KeepAlive    bool          `yaml:"keep_alive"`
	KeepAlivePer time.Duration `yaml:"keep_alive_period"`
}

const defaultServerConfigYAML = `listen_addr: ":8443"
connection:
  initial_window_size: 65535
  max_concurrent_streams: 100
  max_frame_size: 16384
  header_table_size: 4096
socket:
  no_delay: true
  keep_alive: true
  keep_alive_period: 30s
`

const defaultClientConfigYAML = `dial_addr: "127.0.0.1:8443"
connection:
  initial_window_size: 65535
  max_concurrent_streams: 100
  max_frame_size: 16384
  header_table_size: 4096
socket:
  no_delay: true
  keep_alive: true
  keep_alive_period: 30s
`

// DefaultServerConfig returns the built-in server defaults without
// touching the filesystem.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ListenAddr: ":8443",
		Connection: *DefaultConnectionConfig(),
		Socket:     SocketConfig{NoDelay: true, KeepAlive: true, KeepAlivePer: 30 * time.Second},
	}
}

// LoadServerConfig reads a ServerConfig from path, writing the built-in
// defaults to path first if it doesn't exist yet.
func LoadServerConfig(path string) (*ServerConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultServerConfigYAML), 0644); err != nil {
			return nil, fmt.Errorf("wire: writing default server config: %w", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wire: reading server config: %w", err)
	}
	cfg := &ServerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("wire: parsing server config: %w", err)
	}
	if err := cfg.Connection.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClientConfig reads a ClientConfig from path, writing the built-in
// defaults to path first if it doesn't exist yet.
func LoadClientConfig(path string) (*ClientConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(defaultClientConfigYAML), 0644); err != nil {
			return nil, fmt.Errorf("wire: writing default client config: %w", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wire: reading client config: %w", err)
	}
	cfg := &ClientConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("wire: parsing client config: %w", err)
	}
	if err := cfg.Connection.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
