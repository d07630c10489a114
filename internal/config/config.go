package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Provider struct {
	BaseURL      string   `yaml:"baseURL"`
	APIKey       string   `yaml:"apiKey"`
	DefaultModel string   `yaml:"defaultModel"`
	Models       []string `yaml:"models"`
}

type ModelRef struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type APIKey struct {
	UserID string `yaml:"userId"`
	Role   string `yaml:"role"`
}

type Config struct {
	Server struct {
		Port        int      `yaml:"port"`
		CORSOrigins []string `yaml:"corsOrigins"`
	} `yaml:"server"`

	Database struct {
		Driver   string `yaml:"driver"` // postgres | mysql
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Storage struct {
		Driver        string        `yaml:"driver"` // minio | s3
		Endpoint      string        `yaml:"endpoint"`
		AccessKey     string        `yaml:"accessKey"`
		SecretKey     string        `yaml:"secretKey"`
		BucketName    string        `yaml:"bucketName"`
		Region        string        `yaml:"region"`
		UseSSL        bool          `yaml:"useSSL"`
		PublicBaseURL string        `yaml:"publicBaseURL"`
		PresignTTL    time.Duration `yaml:"presignTTL"`
	} `yaml:"storage"`

	AI struct {
		Providers       map[string]Provider `yaml:"providers"`
		DefaultProvider string              `yaml:"defaultProvider"`
		Text            ModelRef            `yaml:"text"`
		Vision          ModelRef            `yaml:"vision"`
		// Embedding vectorises document chunks; only used with postgres
		Embedding ModelRef `yaml:"embedding"`
		ChunkSize int      `yaml:"chunkSize"`
		Image           struct {
			BaseURL string `yaml:"baseURL"`
			APIKey  string `yaml:"apiKey"`
			Model   string `yaml:"model"`
			Width   int    `yaml:"width"`
			Height  int    `yaml:"height"`
			Steps   int    `yaml:"steps"`
		} `yaml:"image"`
		PerCategoryParallelism int `yaml:"perCategoryParallelism"`
	} `yaml:"ai"`

	Auth struct {
		APIKeys   map[string]APIKey `yaml:"apiKeys"`
		JWTSecret string            `yaml:"jwtSecret"`
	} `yaml:"auth"`

	RateLimit struct {
		Disabled bool          `yaml:"disabled"`
		Requests int           `yaml:"requests"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"rateLimit"`

	Guidelines struct {
		Dir       string `yaml:"dir"`
		Namespace string `yaml:"namespace"`
	} `yaml:"guidelines"`
}

// Load baca .env (kalau ada), file config.yaml, lalu override dari env
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// env-only deployment
	default:
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, cfg.validate()
}

func (c *Config) applyEnv() {
	setProviderKey := func(name, env string) {
		v := os.Getenv(env)
		if v == "" {
			return
		}
		if c.AI.Providers == nil {
			c.AI.Providers = make(map[string]Provider)
		}
		p := c.AI.Providers[name]
		p.APIKey = v
		c.AI.Providers[name] = p
	}
	setProviderKey("openai", "OPENAI_API_KEY")
	setProviderKey("deepseek", "DEEPSEEK_API_KEY")

	str := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	str(&c.AI.Image.APIKey, "TOGETHER_API_KEY")
	str(&c.Storage.AccessKey, "AWS_ACCESS_KEY_ID")
	str(&c.Storage.SecretKey, "AWS_SECRET_ACCESS_KEY")
	str(&c.Storage.Region, "AWS_REGION")
	str(&c.Storage.BucketName, "AWS_S3_BUCKET_NAME")
	str(&c.Database.URL, "DATABASE_URL")
	str(&c.Auth.JWTSecret, "JWT_SECRET")

	if v := os.Getenv("DISABLE_RATE_LIMIT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.RateLimit.Disabled = b
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "postgres"
		if strings.HasPrefix(c.Database.URL, "mysql://") {
			c.Database.Driver = "mysql"
		}
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "s3"
		if c.Storage.Endpoint != "" {
			c.Storage.Driver = "minio"
		}
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.PresignTTL <= 0 {
		c.Storage.PresignTTL = time.Hour
	}

	defaultProvider := func(name, baseURL, model string) {
		if c.AI.Providers == nil {
			c.AI.Providers = make(map[string]Provider)
		}
		p, ok := c.AI.Providers[name]
		if !ok {
			return
		}
		if p.BaseURL == "" {
			p.BaseURL = baseURL
		}
		if p.DefaultModel == "" {
			p.DefaultModel = model
		}
		c.AI.Providers[name] = p
	}
	defaultProvider("openai", "https://api.openai.com/v1", "gpt-4o")
	defaultProvider("deepseek", "https://api.deepseek.com/v1", "deepseek-chat")

	if c.AI.DefaultProvider == "" {
		c.AI.DefaultProvider = "deepseek"
		if _, ok := c.AI.Providers["deepseek"]; !ok {
			c.AI.DefaultProvider = "openai"
		}
	}
	if c.AI.Text.Provider == "" {
		c.AI.Text.Provider = c.AI.DefaultProvider
	}
	if c.AI.Vision.Provider == "" {
		c.AI.Vision.Provider = "openai"
	}
	if c.AI.Vision.Model == "" {
		c.AI.Vision.Model = "gpt-4o"
	}
	if c.AI.Embedding.Provider == "" {
		c.AI.Embedding.Provider = "openai"
	}
	if c.AI.Embedding.Model == "" {
		c.AI.Embedding.Model = "text-embedding-3-small"
	}
	if c.AI.ChunkSize <= 0 {
		c.AI.ChunkSize = 2000
	}
	if c.AI.Image.Width == 0 {
		c.AI.Image.Width = 1024
	}
	if c.AI.Image.Height == 0 {
		c.AI.Image.Height = 768
	}
	if c.AI.Image.Steps == 0 {
		c.AI.Image.Steps = 3
	}

	if c.RateLimit.Requests <= 0 {
		c.RateLimit.Requests = 100
	}
	if c.RateLimit.Window <= 0 {
		c.RateLimit.Window = time.Minute
	}
	if c.Guidelines.Dir == "" {
		c.Guidelines.Dir = "data/guidelines"
	}
	if c.Guidelines.Namespace == "" {
		c.Guidelines.Namespace = "imageGenGuidelines"
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Storage.Driver {
	case "minio", "s3":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.BucketName == "" {
		return errors.New("config: storage.bucketName is required")
	}
	return nil
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN prefers DATABASE_URL, else builds a URL from the parts.
func (c *Config) PostgresDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
