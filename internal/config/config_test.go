package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInitConfigExpandsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FACEWATCH_TEST_DSN", "file:test.db")

	yamlPath := filepath.Join(dir, "config.yaml")
	os.WriteFile(yamlPath, []byte(`
addr: 0.0.0.0:9000
location: Gate A
db:
  driver: sqlite
  dsn: ${FACEWATCH_TEST_DSN}
resolver:
  similarityThreshold: 0.8
live:
  votes: 3
dashboard:
  reporter: nsq
  timeout: 5s
`), 0644)

	conf, err := InitConfig(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Addr != "0.0.0.0:9000" || conf.Location != "Gate A" {
		t.Errorf("unexpected top-level fields %+v", conf)
	}
	if conf.DB.Driver != "sqlite" || conf.DB.DSN != "file:test.db" {
		t.Errorf("env var not expanded: %+v", conf.DB)
	}
	if conf.Resolver.SimilarityThreshold != 0.8 || conf.Resolver.ConfidenceThreshold != 0.80 {
		t.Errorf("resolver overrides should keep defaults: %+v", conf.Resolver)
	}
	if conf.Live.Votes != 3 || conf.Dashboard.Reporter != "nsq" || conf.Dashboard.Timeout != 5*time.Second {
		t.Errorf("unexpected overrides %+v %+v", conf.Live, conf.Dashboard)
	}
	if conf.Sampler.Stride != 60 || conf.Batch.IoUThreshold != 0.5 {
		t.Errorf("defaults lost: %+v %+v", conf.Sampler, conf.Batch)
	}
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	os.WriteFile(envPath, []byte("FACEWATCH_TEST_FROM_FILE=yes\n"), 0644)
	t.Cleanup(func() { os.Unsetenv("FACEWATCH_TEST_FROM_FILE") })

	if err := LoadEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatal(err)
	}
	if os.Getenv("FACEWATCH_TEST_FROM_FILE") != "yes" {
		t.Error(".env variable not loaded")
	}
}

func TestInitConfigMissingFile(t *testing.T) {
	if _, err := InitConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing config file should fail")
	}
}
