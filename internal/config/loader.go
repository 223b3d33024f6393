package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variable names before mapping.
const EnvPrefix = "MENUCART_"

// maxConfigFileSize bounds the YAML file; anything larger is not a config.
const maxConfigFileSize = 1 << 20

// systemConfigDir is searched alongside the user's config directory.
const systemConfigDir = "/etc/menucart"

// LoadWithFile builds the configuration from, lowest precedence first,
// built-in defaults, the YAML file at configPath and MENUCART_* environment
// variables. An empty configPath means ~/.config/menucart/config.yaml, and a
// missing file is not an error.
//
// The file may carry a NATS URL with credentials, so it is only read from
// ~/.config/menucart/ or /etc/menucart/, must be mode 0600 or 0400 and may
// not exceed 1MB.
//
// Environment names lose the prefix and split on their first underscore
// into section and field:
//
//	MENUCART_SERVER_HTTP_PORT    -> server.http_port
//	MENUCART_STORAGE_QUOTA_BYTES -> storage.quota_bytes
//	MENUCART_SYNC_NATS_URL       -> sync.nats_url
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		dir, err := configDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	k := koanf.New(".")

	raw, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if raw != nil {
		if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// readConfigFile returns nil, nil when path does not exist. Properties are
// checked on the open descriptor so the file cannot be swapped in between.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}

	raw, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(raw) > maxConfigFileSize {
		return nil, fmt.Errorf("config file grew past %d bytes while reading", maxConfigFileSize)
	}
	return raw, nil
}

// envKey maps MENUCART_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	section, field, ok := strings.Cut(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_")
	if !ok {
		return section
	}
	return section + "." + field
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "menucart"), nil
}

// EnsureConfigDir creates ~/.config/menucart with mode 0700.
func EnsureConfigDir() error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath accepts paths inside the user or system config
// directory after symlinks are resolved. Paths that do not exist yet are
// judged as written.
func validateConfigPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	userDir, err := configDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, systemConfigDir} {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return nil
	}
	return fmt.Errorf("config file must be in ~/.config/menucart/ or %s/", systemConfigDir)
}

func validateConfigFileProperties(info os.FileInfo) error {
	// Windows has no unix permission bits to check.
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
