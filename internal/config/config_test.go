package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sample = `
server:
  port: 9090
database:
  driver: mysql
  host: db
  port: 3306
  user: app
  password: secret
  name: mlr
storage:
  driver: minio
  endpoint: minio:9000
  bucketName: assets
  presignTTL: 30m
ai:
  providers:
    openai:
      models: [gpt-4o, gpt-4o-mini]
rateLimit:
  requests: 10
  window: 10s
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_YAMLAndDefaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "")
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9090 || cfg.Database.Driver != "mysql" {
		t.Fatalf("unexpected server/database: %+v %+v", cfg.Server, cfg.Database)
	}
	if cfg.Storage.PresignTTL != 30*time.Minute {
		t.Fatalf("presign ttl = %s", cfg.Storage.PresignTTL)
	}
	if cfg.RateLimit.Requests != 10 || cfg.RateLimit.Window != 10*time.Second {
		t.Fatalf("rate limit = %+v", cfg.RateLimit)
	}
	if cfg.AI.Providers["openai"].BaseURL != "https://api.openai.com/v1" {
		t.Fatalf("openai base url not defaulted: %+v", cfg.AI.Providers["openai"])
	}
	if cfg.AI.DefaultProvider != "openai" {
		t.Fatalf("default provider = %s", cfg.AI.DefaultProvider)
	}
	if cfg.AI.Image.Width != 1024 || cfg.AI.Image.Height != 768 || cfg.AI.Image.Steps != 3 {
		t.Fatalf("image defaults = %+v", cfg.AI.Image)
	}
	if cfg.AI.Embedding.Model != "text-embedding-3-small" || cfg.AI.ChunkSize != 2000 {
		t.Fatalf("embedding defaults = %+v %d", cfg.AI.Embedding, cfg.AI.ChunkSize)
	}
	if cfg.Guidelines.Namespace != "imageGenGuidelines" {
		t.Fatalf("namespace = %s", cfg.Guidelines.Namespace)
	}
	want := "app:secret@tcp(db:3306)/mlr?parseTime=true&charset=utf8mb4&loc=UTC"
	if got := cfg.MySQLDSN(); got != want {
		t.Fatalf("dsn = %s", got)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeConfig(t, sample)
	t.Setenv("DEEPSEEK_API_KEY", "ds-key")
	t.Setenv("TOGETHER_API_KEY", "tg-key")
	t.Setenv("AWS_S3_BUCKET_NAME", "other-bucket")
	t.Setenv("DISABLE_RATE_LIMIT", "true")
	t.Setenv("JWT_SECRET", "s3cr3t")

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	ds := cfg.AI.Providers["deepseek"]
	if ds.APIKey != "ds-key" || ds.DefaultModel != "deepseek-chat" {
		t.Fatalf("deepseek = %+v", ds)
	}
	if cfg.AI.DefaultProvider != "deepseek" {
		t.Fatalf("default provider = %s", cfg.AI.DefaultProvider)
	}
	if cfg.AI.Image.APIKey != "tg-key" || cfg.Storage.BucketName != "other-bucket" {
		t.Fatalf("overrides not applied: %+v %+v", cfg.AI.Image, cfg.Storage)
	}
	if !cfg.RateLimit.Disabled || cfg.Auth.JWTSecret != "s3cr3t" {
		t.Fatalf("rate limit / jwt not overridden")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	p := writeConfig(t, sample)
	if err := os.WriteFile(".env", []byte("DATABASE_URL=postgres://u:p@h:5432/d?sslmode=disable\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PostgresDSN() != "postgres://u:p@h:5432/d?sslmode=disable" {
		t.Fatalf("dsn = %s", cfg.PostgresDSN())
	}
}

func TestLoad_RequiresBucket(t *testing.T) {
	if _, err := Load(writeConfig(t, "server:\n  port: 1\n")); err == nil {
		t.Fatal("expected bucket error")
	}
}

func TestPostgresDSN_FromParts(t *testing.T) {
	var c Config
	c.Database.User, c.Database.Password = "u", "p"
	c.Database.Host, c.Database.Port, c.Database.Name = "h", 5432, "d"
	c.Database.SSLMode = "require"
	if got := c.PostgresDSN(); got != "postgres://u:p@h:5432/d?sslmode=require" {
		t.Fatalf("dsn = %s", got)
	}
}
