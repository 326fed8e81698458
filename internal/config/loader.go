package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"modkit/internal/apperror"
	"modkit/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	// Env-layer overrides live under MODKIT__ with nested keys joined
	// by a double underscore, e.g. MODKIT__SERVER__PORT or
	// MODKIT__LOGGING__DEFAULT__CONSOLE_LEVEL.
	EnvPrefix    = "MODKIT__"
	EnvSeparator = "__"
)

// CLIOverrides carries the flags the command layer (out of scope for this
// package, see cmd/) wants applied as the highest-precedence layer.
type CLIOverrides struct {
	Port      *int
	Verbosity int // 0=default, 1=-v, 2=-vv, 3+=-vvv
}

// Load runs the full layered merge: built-in defaults, an optional config
// file, environment variables under EnvPrefix, then CLI overrides. The
// returned AppConfig has server.home_dir canonicalized and created.
//
// configPath may be empty, in which case no file layer is applied and the
// process runs on defaults/env/CLI alone (legal for OoP children booting
// standalone).
func Load(configPath string, cli CLIOverrides) (AppConfig, error) {
	defaultsMap, err := toMap(Defaults())
	if err != nil {
		return AppConfig{}, apperror.Wrap(apperror.KindConfigLoad, "encoding built-in defaults", err)
	}

	fileMap, err := loadFileLayer(configPath)
	if err != nil {
		return AppConfig{}, err
	}

	envMap := loadEnvLayer(os.Environ())

	cliMap := cliLayer(cli)

	merged, err := mergeLayers(defaultsMap, fileMap, envMap, cliMap)
	if err != nil {
		return AppConfig{}, apperror.Wrap(apperror.KindConfigLoad, "merging configuration layers", err)
	}

	cfg, err := decodeStrict(merged)
	if err != nil {
		return AppConfig{}, apperror.Wrap(apperror.KindConfigLoad, "decoding merged configuration", err)
	}

	if err := canonicalizeHomeDir(&cfg); err != nil {
		return AppConfig{}, apperror.Wrap(apperror.KindConfigLoad, "canonicalizing server.home_dir", err)
	}

	if errs := Validate(cfg); errs.HasErrors() {
		return AppConfig{}, apperror.Wrap(apperror.KindConfigValidation, "configuration failed validation", errs)
	}

	return cfg, nil
}

// loadFileLayer reads configPath, if given, and returns its contents as a
// generic map. An explicitly requested path that does not exist is fatal;
// an empty path yields an empty layer (no file configured).
func loadFileLayer(configPath string) (map[string]interface{}, error) {
	if configPath == "" {
		return map[string]interface{}{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.Wrap(apperror.KindConfigLoad, fmt.Sprintf("config file not found: %s", configPath), err)
		}
		return nil, apperror.Wrap(apperror.KindConfigLoad, fmt.Sprintf("reading config file %s", configPath), err)
	}

	m, err := decodeFileBytes(configPath, data)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindConfigLoad, fmt.Sprintf("parsing config file %s", configPath), err)
	}

	logging.Info("ConfigLoader", "loaded configuration from %s", configPath)
	return m, nil
}

// decodeFileBytes picks JSON or YAML by extension, falling back to
// trying both in order when the extension is absent or unrecognized.
func decodeFileBytes(path string, data []byte) (map[string]interface{}, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return decodeJSONMap(data)
	case ".yaml", ".yml":
		return decodeYAMLMap(data)
	}

	if m, err := decodeYAMLMap(data); err == nil {
		return m, nil
	}
	return decodeJSONMap(data)
}

func decodeJSONMap(data []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeYAMLMap(data []byte) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// loadEnvLayer scans environ for EnvPrefix-prefixed variables and builds
// the nested override map they describe. Values are type-inferred:
// integers, booleans, and floats parse to their Go type; everything else
// stays a string.
func loadEnvLayer(environ []string) map[string]interface{} {
	result := map[string]interface{}{}

	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}

		trimmed := strings.TrimPrefix(key, EnvPrefix)
		if trimmed == "" {
			continue
		}

		path := strings.Split(strings.ToLower(trimmed), strings.ToLower(EnvSeparator))
		setPath(result, path, inferScalar(value))
	}

	return result
}

// cliLayer projects CLIOverrides onto the same override-map shape as the
// other layers, so it can be folded through mergeLayers uniformly.
func cliLayer(cli CLIOverrides) map[string]interface{} {
	result := map[string]interface{}{}

	if cli.Port != nil {
		setPath(result, []string{"server", "port"}, *cli.Port)
	}

	if level := verbosityToLevel(cli.Verbosity); level != "" {
		setPath(result, []string{"logging", defaultSubsystem, "console_level"}, level)
	}

	return result
}

func verbosityToLevel(v int) string {
	switch {
	case v <= 0:
		return ""
	case v == 1:
		return "info"
	case v == 2:
		return "debug"
	default:
		return "trace"
	}
}

// setPath assigns value at the nested key path inside m, creating
// intermediate maps as needed.
func setPath(m map[string]interface{}, path []string, value interface{}) {
	if len(path) == 0 {
		return
	}
	if len(path) == 1 {
		m[path[0]] = value
		return
	}

	next, ok := m[path[0]].(map[string]interface{})
	if !ok {
		next = map[string]interface{}{}
		m[path[0]] = next
	}
	setPath(next, path[1:], value)
}

func inferScalar(value string) interface{} {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return i
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

// toMap round-trips a typed AppConfig through YAML to obtain the
// map[string]interface{} shape mergeLayers operates on.
func toMap(cfg AppConfig) (map[string]interface{}, error) {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// decodeStrict re-serializes the merged generic map and decodes it into
// AppConfig with unknown-field rejection enabled, so a typo in a config
// file fails loudly instead of silently applying defaults.
func decodeStrict(merged map[string]interface{}) (AppConfig, error) {
	b, err := yaml.Marshal(merged)
	if err != nil {
		return AppConfig{}, err
	}

	var cfg AppConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// canonicalizeHomeDir makes server.home_dir absolute and ensures it
// exists; every loaded AppConfig carries a usable home directory.
func canonicalizeHomeDir(cfg *AppConfig) error {
	if cfg.Server.HomeDir == "" {
		return fmt.Errorf("server.home_dir must not be empty")
	}

	expanded := cfg.Server.HomeDir
	if strings.HasPrefix(expanded, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolving home directory: %w", err)
		}
		expanded = filepath.Join(home, expanded[2:])
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return fmt.Errorf("canonicalizing %s: %w", expanded, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("creating home_dir %s: %w", abs, err)
	}

	cfg.Server.HomeDir = abs
	return nil
}
