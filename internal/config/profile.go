package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile is the CLI configuration kept in ~/.magicpic/config.toml.
type Profile struct {
	APIURL         string       `toml:"api_url"`
	LogLevel       string       `toml:"log_level"`
	TimeoutSeconds int          `toml:"timeout_seconds"`
	Redis          RedisProfile `toml:"redis"`
}

// RedisProfile points the CLI at a shared session store.
type RedisProfile struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// DefaultProfile returns the values used when no file exists.
func DefaultProfile() Profile {
	return Profile{
		APIURL:         DefaultAdminAPIURL,
		LogLevel:       "warn",
		TimeoutSeconds: 15,
		Redis:          RedisProfile{Prefix: "magicpic:"},
	}
}

// HomeDir is where the CLI keeps its profile and file session.
func HomeDir() string {
	if dir := os.Getenv("MAGICPIC_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".magicpic"
	}
	return filepath.Join(home, ".magicpic")
}

// LoadProfile reads path over the defaults, then applies env overrides.
// A missing file is not an error.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()

	if _, err := toml.DecodeFile(path, &p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return p, fmt.Errorf("read profile %s: %w", path, err)
	}

	if v := os.Getenv("ADMIN_API_URL"); v != "" {
		p.APIURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		p.LogLevel = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		p.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		p.Redis.Password = v
	}
	p.APIURL = strings.TrimRight(p.APIURL, "/")
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 15
	}
	return p, nil
}
