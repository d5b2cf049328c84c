package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"talentline/internal/domain"
)

// Config models talentline.yml.
type Config struct {
	Portal struct {
		BaseURL  string        `yaml:"base_url"`
		BasePath string        `yaml:"base_path"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"portal"`
	Pipeline struct {
		Departments []string          `yaml:"departments"`
		PageSize    int               `yaml:"page_size"`
		Templates   map[string]string `yaml:"templates"`
	} `yaml:"pipeline"`
	Server struct {
		Addr        string        `yaml:"addr"`
		BasePath    string        `yaml:"base_path"`
		MaxUploadMB int64         `yaml:"max_upload_mb"`
		TokenTTL    time.Duration `yaml:"token_ttl"`
	} `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Drafts  Drafts  `yaml:"drafts"`
}

type Storage struct {
	Kind  string `yaml:"kind"`
	Dir   string `yaml:"dir"`
	MinIO struct {
		Endpoint string `yaml:"endpoint"`
		Bucket   string `yaml:"bucket"`
		Region   string `yaml:"region"`
		UseSSL   bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
}

type Drafts struct {
	Kind  string        `yaml:"kind"`
	TTL   time.Duration `yaml:"ttl"`
	Redis struct {
		Addr   string `yaml:"addr"`
		DB     int    `yaml:"db"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`
}

const (
	StorageFS    = "fs"
	StorageMinIO = "minio"

	DraftsSQLite = "sqlite"
	DraftsRedis  = "redis"
	DraftsMemory = "memory"
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with tl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("config.portal.base_url is required")
	}
	if u, err := url.Parse(c.Portal.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config.portal.base_url %q is not an absolute url", c.Portal.BaseURL)
	}
	if c.Portal.Timeout < 0 {
		return fmt.Errorf("config.portal.timeout must not be negative")
	}
	if len(c.Pipeline.Departments) == 0 {
		return fmt.Errorf("config.pipeline.departments is required")
	}
	seen := map[string]bool{}
	for _, d := range c.Pipeline.Departments {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("config.pipeline.departments contains an empty name")
		}
		if seen[d] {
			return fmt.Errorf("department %s listed twice", d)
		}
		seen[d] = true
	}
	if c.Pipeline.PageSize < 1 || c.Pipeline.PageSize > 100 {
		return fmt.Errorf("config.pipeline.page_size must be between 1 and 100")
	}
	for outcome, body := range c.Pipeline.Templates {
		if !domain.Outcome(outcome).Valid() {
			return fmt.Errorf("template for unknown outcome %s", outcome)
		}
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("template for outcome %s is empty", outcome)
		}
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("config.server.max_upload_mb must be positive")
	}
	switch c.Storage.Kind {
	case StorageFS:
		if c.Storage.Dir == "" {
			return fmt.Errorf("config.storage.dir is required for kind fs")
		}
	case StorageMinIO:
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			return fmt.Errorf("config.storage.minio needs endpoint and bucket")
		}
	default:
		return fmt.Errorf("config.storage.kind must be fs or minio, got %q", c.Storage.Kind)
	}
	switch c.Drafts.Kind {
	case DraftsSQLite, DraftsMemory:
	case DraftsRedis:
		if c.Drafts.Redis.Addr == "" {
			return fmt.Errorf("config.drafts.redis.addr is required for kind redis")
		}
	default:
		return fmt.Errorf("config.drafts.kind must be sqlite, redis or memory, got %q", c.Drafts.Kind)
	}
	if c.Drafts.TTL < 0 {
		return fmt.Errorf("config.drafts.ttl must not be negative")
	}
	return nil
}

// NotificationTemplates returns the configured message bodies keyed by outcome.
func (c *Config) NotificationTemplates() map[domain.Outcome]string {
	out := make(map[domain.Outcome]string, len(c.Pipeline.Templates))
	for k, v := range c.Pipeline.Templates {
		out[domain.Outcome(k)] = v
	}
	return out
}

// HasDepartment reports whether dept is one of the configured departments.
func (c *Config) HasDepartment(dept string) bool {
	for _, d := range c.Pipeline.Departments {
		if d == dept {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "talentline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing sections
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `portal:
  base_url: http://localhost:8080
  base_path: v0
  timeout: 15s

pipeline:
  departments: [engineering, design, operations]
  page_size: 10
  templates:
    cleared: "Hi {{name}}, congratulations! You have been moved to {{stage}} for the {{job}} role."
    rejected: "Hi {{name}}, thank you for your time. We will not be moving forward with your {{job}} application after {{stage}}."

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  max_upload_mb: 10
  token_ttl: 12h

storage:
  kind: fs
  dir: .talentline/blobs
  minio:
    endpoint: localhost:9000
    bucket: talentline-attachments
    region: us-east-1
    use_ssl: false

drafts:
  kind: sqlite
  ttl: 720h
  redis:
    addr: localhost:6379
    db: 0
    prefix: "talentline:draft:"
`
