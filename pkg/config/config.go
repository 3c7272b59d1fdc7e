package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values that other packages may
// query after startup (populated by the app once file+env are merged).
type RuntimeConfig struct {
	BackendKeys  map[string]struct{}
	FrontendKeys map[string]struct{}
	AdminKeys    map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetBackendKeys returns a copy of configured backend keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil {
		return out
	}
	for k := range runtimeCfg.BackendKeys {
		out[k] = struct{}{}
	}
	return out
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseCommandFlags parses the process flags. Centralized here so main
// stays small.
func ParseCommandFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// ResolveConfigPath picks the config path: an explicit flag wins, then
// CHATDB_CONFIG, then the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if p := strings.TrimSpace(os.Getenv("CHATDB_CONFIG")); p != "" {
		return p
	}
	return flagVal
}

// EffectiveConfigResult is the merged view of file, env and defaults.
type EffectiveConfigResult struct {
	Config  *Config
	Addr    string
	DBPath  string
	EnvUsed bool
	Sources []string
}

// LoadEffective loads the config file (missing file is not fatal) and
// applies CHATDB_* environment overrides on top.
func LoadEffective(path string) (EffectiveConfigResult, error) {
	res := EffectiveConfigResult{Config: &Config{}}
	if path != "" {
		cfg, err := Load(path)
		if err == nil {
			res.Config = cfg
			res.Sources = append(res.Sources, "config")
		} else if !os.IsNotExist(err) {
			return res, err
		}
	}
	if applyEnv(res.Config) {
		res.EnvUsed = true
		res.Sources = append(res.Sources, "env")
	}
	res.Addr = res.Config.Addr()
	res.DBPath = res.Config.Server.DBPath
	return res, nil
}

// applyEnv mutates cfg from CHATDB_* variables and reports whether any
// were present.
func applyEnv(cfg *Config) bool {
	used := false
	if v := os.Getenv("CHATDB_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
		used = true
	}
	if v := os.Getenv("CHATDB_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
			used = true
		}
	}
	if v := os.Getenv("CHATDB_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
		used = true
	}
	if v := os.Getenv("CHATDB_API_BACKEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Backend = splitKeys(v)
		used = true
	}
	if v := os.Getenv("CHATDB_API_FRONTEND_KEYS"); v != "" {
		cfg.Security.APIKeys.Frontend = splitKeys(v)
		used = true
	}
	if v := os.Getenv("CHATDB_API_ADMIN_KEYS"); v != "" {
		cfg.Security.APIKeys.Admin = splitKeys(v)
		used = true
	}
	if v := os.Getenv("CHATDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
		used = true
	}
	if v := os.Getenv("CHATDB_RETENTION_ENABLED"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			cfg.Retention.Enabled = true
		default:
			cfg.Retention.Enabled = false
		}
		used = true
	}
	return used
}

func splitKeys(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
