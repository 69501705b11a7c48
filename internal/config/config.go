package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultConfigRelPath = ".apibuilder/config.yaml"
	defaultStoreRelPath  = ".apibuilder/data.db"
)

type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
}

// RenderConfig is passed to generators as doc.Options.
type RenderConfig struct {
	Title       string `yaml:"title"`
	ContentType string `yaml:"content_type"`
	Indent      int    `yaml:"indent"`
	Version     string `yaml:"version"`
	// OpenAPIFormat is "yaml" or "json".
	OpenAPIFormat string `yaml:"openapi_format"`
}

type FilterConfig struct {
	IgnoreExtensions   []string `yaml:"ignore_extensions"`
	IgnoreContentTypes []string `yaml:"ignore_content_types"`
	IgnorePaths        []string `yaml:"ignore_paths"`
}

type SanitizeConfig struct {
	Headers     []string `yaml:"headers"`
	BodyFields  []string `yaml:"body_fields"`
	Replacement string   `yaml:"replacement"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CORSOrigin is echoed in Access-Control-Allow-Origin when set.
	CORSOrigin string `yaml:"cors_origin"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Output   OutputConfig   `yaml:"output"`
	Render   RenderConfig   `yaml:"render"`
	Filter   FilterConfig   `yaml:"filter"`
	Sanitize SanitizeConfig `yaml:"sanitize"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
}

// DefaultPath is the config file used when Load gets an empty path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, defaultConfigRelPath), nil
}

// Load loads YAML config, then applies env overrides.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.SetDefaults()
	return cfg, nil
}

func (c *Config) SetDefaults() {
	if c.Output.Dir == "" {
		c.Output.Dir = "./docs"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"apib"}
	}
	if c.Render.ContentType == "" {
		c.Render.ContentType = "application/json"
	}
	if c.Render.Indent == 0 {
		c.Render.Indent = 4
	}
	if c.Render.OpenAPIFormat == "" {
		c.Render.OpenAPIFormat = "yaml"
	}
	if len(c.Filter.IgnoreExtensions) == 0 {
		c.Filter.IgnoreExtensions = []string{".js", ".css", ".png", ".jpg", ".gif", ".svg", ".woff", ".woff2", ".ico", ".map"}
	}
	if len(c.Filter.IgnoreContentTypes) == 0 {
		c.Filter.IgnoreContentTypes = []string{"text/html", "text/css", "image/*", "font/*", "application/javascript"}
	}
	if len(c.Filter.IgnorePaths) == 0 {
		c.Filter.IgnorePaths = []string{"/static/", "/assets/", "/favicon"}
	}
	if len(c.Sanitize.Headers) == 0 {
		c.Sanitize.Headers = []string{"Authorization", "Cookie", "Set-Cookie", "X-Api-Key", "X-Auth-Token"}
	}
	if len(c.Sanitize.BodyFields) == 0 {
		c.Sanitize.BodyFields = []string{"password", "secret", "token", "api_key", "access_token", "refresh_token", "credential"}
	}
	if c.Sanitize.Replacement == "" {
		c.Sanitize.Replacement = "***REDACTED***"
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Store.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Store.Path = filepath.Join(home, defaultStoreRelPath)
		} else {
			c.Store.Path = "apibuilder.db"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Output.Dir) == "" {
		return errors.New("output.dir cannot be empty")
	}
	if c.Render.Indent < 0 || c.Render.Indent > 16 {
		return fmt.Errorf("render.indent out of range: %d", c.Render.Indent)
	}
	switch strings.ToLower(c.Render.OpenAPIFormat) {
	case "yaml", "json":
	default:
		return fmt.Errorf("render.openapi_format must be yaml or json, got %q", c.Render.OpenAPIFormat)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// ValidateGenerate also requires output.dir to be writable.
func (c *Config) ValidateGenerate() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Output.Formats) == 0 {
		return errors.New("output.formats cannot be empty")
	}
	if err := ensureWritableDir(c.Output.Dir); err != nil {
		return fmt.Errorf("output.dir not writable: %w", err)
	}
	return nil
}

// IndentString is Render.Indent as spaces.
func (c *Config) IndentString() string {
	return strings.Repeat(" ", c.Render.Indent)
}

func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

func applyEnvOverrides(c *Config) {
	setString(&c.Output.Dir, "APIBUILDER_OUTPUT_DIR")
	setList(&c.Output.Formats, "APIBUILDER_OUTPUT_FORMATS")
	setString(&c.Render.Title, "APIBUILDER_RENDER_TITLE")
	setString(&c.Render.ContentType, "APIBUILDER_RENDER_CONTENT_TYPE")
	setInt(&c.Render.Indent, "APIBUILDER_RENDER_INDENT")
	setString(&c.Render.Version, "APIBUILDER_RENDER_VERSION")
	setString(&c.Render.OpenAPIFormat, "APIBUILDER_RENDER_OPENAPI_FORMAT")
	setString(&c.Server.Host, "APIBUILDER_SERVER_HOST")
	setInt(&c.Server.Port, "APIBUILDER_SERVER_PORT")
	setString(&c.Store.Path, "APIBUILDER_STORE_PATH")
	setString(&c.Log.Level, "APIBUILDER_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setList splits a comma separated value, dropping empty entries.
func setList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
