package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/Tiliavir/punch-clock/internal/rules"
	"github.com/Tiliavir/punch-clock/internal/timecalc"
)

// Config is the root configuration for punch, stored in ~/.punch/config.json.
// The file supports single-line // comments for documentation purposes. A
// path ending in .toml is read as TOML instead.
type Config struct {
	User       UserConfig    `json:"user" toml:"user"`
	Account    AccountConfig `json:"account" toml:"account"`
	Store      StoreConfig   `json:"store" toml:"store"`
	Server     ServerConfig  `json:"server" toml:"server"`
	DebounceMS int           `json:"debounce_ms" toml:"debounce_ms"`
	LogLevel   string        `json:"log_level" toml:"log_level"`
	Rules      RulesConfig   `json:"rules" toml:"rules"`
}

// UserConfig is the account used when Account.Mode is "static".
type UserConfig struct {
	ID    string `json:"id" toml:"id"`
	Name  string `json:"name" toml:"name"`
	Email string `json:"email" toml:"email"`
}

// AccountConfig selects how users are resolved.
type AccountConfig struct {
	// Mode is "static" (the configured user) or "oauth" (device flow).
	Mode          string `json:"mode" toml:"mode"`
	TenantID      string `json:"tenant_id" toml:"tenant_id"`
	ClientID      string `json:"client_id" toml:"client_id"`
	DeviceAuthURL string `json:"device_auth_url" toml:"device_auth_url"`
	TokenURL      string `json:"token_url" toml:"token_url"`
	UserInfoURL   string `json:"userinfo_url" toml:"userinfo_url"`
}

// StoreConfig selects the document store.
type StoreConfig struct {
	// Driver is "file", "sqlite" or "postgres".
	Driver string `json:"driver" toml:"driver"`
	// Path is the data directory (file) or database file (sqlite).
	Path string `json:"path" toml:"path"`
	// DSN is the postgres connection string.
	DSN string `json:"dsn" toml:"dsn"`
}

// ServerConfig configures `punch serve`.
type ServerConfig struct {
	Addr string `json:"addr" toml:"addr"`
}

// RulesConfig overrides the scheduling thresholds. Times of day are HH:MM,
// durations are minutes. Empty or zero values keep the built-in defaults.
type RulesConfig struct {
	MinMorningEntry    string `json:"min_morning_entry" toml:"min_morning_entry"`
	MaxMorningEntry    string `json:"max_morning_entry" toml:"max_morning_entry"`
	MinMorningExit     string `json:"min_morning_exit" toml:"min_morning_exit"`
	MinMorningMinutes  int    `json:"min_morning_minutes" toml:"min_morning_minutes"`
	MaxMorningMinutes  int    `json:"max_morning_minutes" toml:"max_morning_minutes"`
	MinLunchBreak      int    `json:"min_lunch_break_minutes" toml:"min_lunch_break_minutes"`
	MaxAfternoonEntry  string `json:"max_afternoon_entry" toml:"max_afternoon_entry"`
	MinAfternoonExit   string `json:"min_afternoon_exit" toml:"min_afternoon_exit"`
	MaxAfternoonExit   string `json:"max_afternoon_exit" toml:"max_afternoon_exit"`
	MinAfternoonMinute int    `json:"min_afternoon_minutes" toml:"min_afternoon_minutes"`
	MaxAfternoonMinute int    `json:"max_afternoon_minutes" toml:"max_afternoon_minutes"`
	WorkdayMinutes     int    `json:"workday_minutes" toml:"workday_minutes"`
	ExitEarlyTolerance int    `json:"exit_early_tolerance_minutes" toml:"exit_early_tolerance_minutes"`
	ExitLateTolerance  int    `json:"exit_late_tolerance_minutes" toml:"exit_late_tolerance_minutes"`
}

const (
	// DefaultUserID is the static user when none is configured.
	DefaultUserID = "local"
	// DefaultAddr is the listen address of `punch serve`.
	DefaultAddr = "127.0.0.1:8420"
	// DefaultDebounceMS is the quiet interval before edits are written.
	DefaultDebounceMS = 100
)

// envOverrides are read from PUNCH_* variables and win over the file.
type envOverrides struct {
	UserID        string `envconfig:"USER_ID"`
	UserName      string `envconfig:"USER_NAME"`
	UserEmail     string `envconfig:"USER_EMAIL"`
	AccountMode   string `envconfig:"ACCOUNT_MODE"`
	TenantID      string `envconfig:"TENANT_ID"`
	ClientID      string `envconfig:"CLIENT_ID"`
	DeviceAuthURL string `envconfig:"DEVICE_AUTH_URL"`
	TokenURL      string `envconfig:"TOKEN_URL"`
	UserInfoURL   string `envconfig:"USERINFO_URL"`
	StoreDriver   string `envconfig:"STORE_DRIVER"`
	StorePath     string `envconfig:"STORE_PATH"`
	StoreDSN      string `envconfig:"STORE_DSN"`
	ServerAddr    string `envconfig:"SERVER_ADDR"`
	DebounceMS    int    `envconfig:"DEBOUNCE_MS"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
}

// configTemplate is the annotated config written on first run.
// Lines whose trimmed content starts with // are stripped before JSON parsing,
// allowing human-readable documentation inside the file.
const configTemplate = `// punch configuration – ~/.punch/config.json
//
// All settings are optional; the built-in defaults work out of the box for a
// single local user. Every value can also be set through a PUNCH_* variable,
// e.g. PUNCH_STORE_DRIVER=sqlite.
{
  // Who the punches belong to when account.mode is "static".
  "user": {
    "id": "local",
    "name": "",
    "email": ""
  },

  // "static" uses the user above. "oauth" signs in with the device code flow
  // (punch login); tenant_id and client_id select the identity provider.
  "account": {
    "mode": "static",
    "tenant_id": "",
    "client_id": ""
  },

  // Where days are stored.
  // • "file"     – one JSON document per day under path (default ~/.punch)
  // • "sqlite"   – single database file at path (default ~/.punch/punch.db)
  // • "postgres" – connection string in dsn
  "store": {
    "driver": "file",
    "path": "",
    "dsn": ""
  },

  // Listen address of punch serve.
  "server": {
    "addr": "127.0.0.1:8420"
  },

  // Quiet interval in milliseconds before edits are written.
  "debounce_ms": 100,

  // Scheduling rules. Times are HH:MM, durations are minutes.
  "rules": {
    "min_morning_entry": "07:00",
    "max_morning_entry": "10:00",
    "min_morning_exit": "11:30",
    "min_morning_minutes": 180,
    "max_morning_minutes": 300,
    "min_lunch_break_minutes": 30,
    "max_afternoon_entry": "14:00",
    "min_afternoon_exit": "16:00",
    "max_afternoon_exit": "19:00",
    "min_afternoon_minutes": 180,
    "max_afternoon_minutes": 300,
    "workday_minutes": 480,
    "exit_early_tolerance_minutes": 5,
    "exit_late_tolerance_minutes": 10
  }
}
`

// DefaultPath returns the path to ~/.punch/config.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".punch", "config.json"), nil
}

// stripLineComments removes lines whose leading non-whitespace content starts
// with //. Only full-line comments are handled; inline comments are not stripped.
func stripLineComments(data []byte) []byte {
	var out []byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimLeft(line, " \t"), []byte("//")) {
			continue
		}
		out = append(out, line...)
		out = append(out, '\n')
	}
	return out
}

// Load reads the config at path (DefaultPath when empty). A missing JSON
// config is created from the annotated template. PUNCH_* environment
// variables are applied on top, then defaults fill what is still unset.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Default(), err
		}
		path = p
	}

	cfg, err := readFile(path)
	if err != nil {
		return Default(), err
	}

	var env envOverrides
	if err := envconfig.Process("PUNCH", &env); err != nil {
		return Default(), fmt.Errorf("failed to process environment variables: %w", err)
	}
	cfg.applyEnv(env)
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a Config with every default applied.
func Default() Config {
	var cfg Config
	cfg.fillDefaults()
	return cfg
}

func readFile(path string) (Config, error) {
	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return cfg, nil
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// First run: write the annotated template so users can discover options.
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := json.Unmarshal(stripLineComments(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(env envOverrides) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.User.ID, env.UserID)
	set(&c.User.Name, env.UserName)
	set(&c.User.Email, env.UserEmail)
	set(&c.Account.Mode, env.AccountMode)
	set(&c.Account.TenantID, env.TenantID)
	set(&c.Account.ClientID, env.ClientID)
	set(&c.Account.DeviceAuthURL, env.DeviceAuthURL)
	set(&c.Account.TokenURL, env.TokenURL)
	set(&c.Account.UserInfoURL, env.UserInfoURL)
	set(&c.Store.Driver, env.StoreDriver)
	set(&c.Store.Path, env.StorePath)
	set(&c.Store.DSN, env.StoreDSN)
	set(&c.Server.Addr, env.ServerAddr)
	set(&c.LogLevel, env.LogLevel)
	if env.DebounceMS > 0 {
		c.DebounceMS = env.DebounceMS
	}
}

// fillDefaults sets zero-value fields to the built-in defaults so callers
// always get a usable Config even if the file is only partially filled in.
func (c *Config) fillDefaults() {
	if c.User.ID == "" {
		c.User.ID = DefaultUserID
	}
	if c.Account.Mode == "" {
		c.Account.Mode = "static"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.DebounceMS <= 0 {
		c.DebounceMS = DefaultDebounceMS
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Debounce returns the write quiet interval.
func (c Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Validate checks the enumerated settings and the rules.
func (c Config) Validate() error {
	switch c.Account.Mode {
	case "static", "oauth":
	default:
		return fmt.Errorf("unknown account mode %q (want static or oauth)", c.Account.Mode)
	}
	switch c.Store.Driver {
	case "file", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store driver postgres needs a dsn")
		}
	default:
		return fmt.Errorf("unknown store driver %q (want file, sqlite or postgres)", c.Store.Driver)
	}
	_, err := c.Rules.Resolve()
	return err
}

// Resolve converts the overrides into a validated rule set.
func (rc RulesConfig) Resolve() (rules.Rules, error) {
	r := rules.Default()
	clock := []struct {
		name string
		v    string
		dst  *int
	}{
		{"min_morning_entry", rc.MinMorningEntry, &r.MinMorningEntry},
		{"max_morning_entry", rc.MaxMorningEntry, &r.MaxMorningEntry},
		{"min_morning_exit", rc.MinMorningExit, &r.MinMorningExit},
		{"max_afternoon_entry", rc.MaxAfternoonEntry, &r.MaxAfternoonEntry},
		{"min_afternoon_exit", rc.MinAfternoonExit, &r.MinAfternoonExit},
		{"max_afternoon_exit", rc.MaxAfternoonExit, &r.MaxAfternoonExit},
	}
	for _, c := range clock {
		if c.v == "" {
			continue
		}
		if !timecalc.IsValidTime(c.v) {
			return rules.Rules{}, fmt.Errorf("rule %s: %q is not HH:MM", c.name, c.v)
		}
		*c.dst = timecalc.TimeToMinutes(c.v)
	}

	durations := []struct {
		v   int
		dst *int
	}{
		{rc.MinMorningMinutes, &r.MinMorningWork},
		{rc.MaxMorningMinutes, &r.MaxMorningWork},
		{rc.MinLunchBreak, &r.MinLunchBreak},
		{rc.MinAfternoonMinute, &r.MinAfternoonWork},
		{rc.MaxAfternoonMinute, &r.MaxAfternoonWork},
		{rc.WorkdayMinutes, &r.WorkdayMinutes},
		{rc.ExitEarlyTolerance, &r.ExitEarlyTolerance},
		{rc.ExitLateTolerance, &r.ExitLateTolerance},
	}
	for _, d := range durations {
		if d.v != 0 {
			*d.dst = d.v
		}
	}

	if err := r.Validate(); err != nil {
		return rules.Rules{}, err
	}
	return r, nil
}

// writeDefault creates the config directory and writes the annotated default
// config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}
