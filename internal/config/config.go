// Package config holds the persistent pitshare settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
)

const (
	AppDirectoryName  = "pitshare"
	DefaultListenAddr = ":7070"
	DataDirEnv        = "PITSHARE_DATA_DIR"

	configFileName   = "config.json"
	databaseFileName = "pitshare.db"
)

var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

type Config struct {
	ICEServers    []string `json:"ice_servers"`
	ListenAddr    string   `json:"listen_addr"`
	DataDir       string   `json:"data_dir"`
	DownloadDir   string   `json:"download_dir"`
	DatabasePath  string   `json:"database_path"`
	ChunkSize     int      `json:"chunk_size"`
	HashAlgorithm string   `json:"hash_algorithm"`
	LogLevel      string   `json:"log_level"`
	Discovery     bool     `json:"discovery"`
	TLS           bool     `json:"tls"`
}

// Default returns the configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		ICEServers:    append([]string(nil), defaultSTUNServers...),
		ListenAddr:    DefaultListenAddr,
		DataDir:       dataDir,
		DownloadDir:   filepath.Join(dataDir, "downloads"),
		DatabasePath:  filepath.Join(dataDir, databaseFileName),
		ChunkSize:     16 * 1024,
		HashAlgorithm: protocol.HashAlgoSHA1,
		LogLevel:      "info",
		Discovery:     true,
		TLS:           true,
	}
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	switch c.HashAlgorithm {
	case protocol.HashAlgoSHA1, protocol.HashAlgoSHA256:
	default:
		return fmt.Errorf("unsupported hash_algorithm %q", c.HashAlgorithm)
	}
	return nil
}

// WebRTC builds the peer connection configuration from ICEServers.
func (c *Config) WebRTC() webrtc.Configuration {
	cfg := webrtc.Configuration{ICETransportPolicy: webrtc.ICETransportPolicyAll}
	if len(c.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: append([]string(nil), c.ICEServers...)}}
	}
	return cfg
}

func DefaultDataChannelConfig() *webrtc.DataChannelInit {
	protocolName := "file-transfer"
	ordered := true
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: nil,
		Protocol:       &protocolName,
	}
}

// ResolveDataDir returns the per-user data directory. PITSHARE_DATA_DIR
// overrides it.
func ResolveDataDir() (string, error) {
	if override := os.Getenv(DataDirEnv); override != "" {
		return override, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(base, AppDirectoryName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppDirectoryName), nil
	default:
		base := os.Getenv("XDG_DATA_HOME")
		if base == "" {
			base = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(base, AppDirectoryName), nil
	}
}

func Path(dataDir string) string {
	return filepath.Join(dataDir, configFileName)
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default(filepath.Dir(path))
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	raw = append(raw, '\n')
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadOrDefault reads the config in dataDir, falling back to defaults when
// no file exists yet.
func LoadOrDefault(dataDir string) (*Config, error) {
	cfg, err := Load(Path(dataDir))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(dataDir), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
