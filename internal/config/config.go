package config

import (
	"path"
	"time"

	"facewatch/internal/dashboard"
	"facewatch/internal/model"
	"facewatch/internal/pipeline"
	"facewatch/internal/resolver"
	"facewatch/internal/vision"
)

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	Region          string `yaml:"region"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LiveConfig tunes the streaming path. Votes is the number of augmented
// predictions per frame in ml mode.
type LiveConfig struct {
	Votes        int           `yaml:"votes"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// DashboardConfig selects how deltas leave the pipeline (Reporter: http, nsq
// or none) and where they are summed (Aggregator: db or redis).
type DashboardConfig struct {
	Reporter   string              `yaml:"reporter"`
	URL        string              `yaml:"url"`
	Timeout    time.Duration       `yaml:"timeout"`
	Aggregator string              `yaml:"aggregator"`
	NSQ        dashboard.NSQConfig `yaml:"nsq"`
	Redis      RedisConfig         `yaml:"redis"`
}

type Config struct {
	Addr      string               `yaml:"addr"`
	SSLCert   string               `yaml:"sslCert"`
	SSLKey    string               `yaml:"sslKey"`
	Location  string               `yaml:"location"`
	DataDir   string               `yaml:"dataDir"`
	DB        model.DBConfig       `yaml:"db"`
	S3        S3Config             `yaml:"s3"`
	Vision    vision.Config        `yaml:"vision"`
	Resolver  resolver.Config      `yaml:"resolver"`
	Live      LiveConfig           `yaml:"live"`
	Batch     pipeline.BatchConfig `yaml:"batch"`
	Sampler   vision.SamplerConfig `yaml:"sampler"`
	Dashboard DashboardConfig      `yaml:"dashboard"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:     "127.0.0.1:8000",
		Location: "Main Campus Entrance",
		DataDir:  "/var/lib/facewatch",
		DB:       *model.DefaultDBConfig(),
		S3: S3Config{
			Bucket:   "facewatch",
			Endpoint: "127.0.0.1:9000",
			UseSSL:   false,
			Region:   "us-east-1",
		},
		Vision:   vision.DefaultConfig(),
		Resolver: resolver.DefaultConfig(),
		Live: LiveConfig{
			Votes:        1,
			WriteTimeout: 10 * time.Second,
		},
		Batch:   pipeline.DefaultBatchConfig(),
		Sampler: vision.DefaultSamplerConfig(),
		Dashboard: DashboardConfig{
			Reporter:   "http",
			URL:        "http://127.0.0.1:8000/api/dashboard/update",
			Timeout:    dashboard.DefaultReportTimeout,
			Aggregator: "db",
			NSQ: dashboard.NSQConfig{
				NSQDAddrs: []string{"127.0.0.1:4150"},
				Topic:     "dashboard_updates",
			},
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
			},
		},
	}
}

func (c *Config) JobDBDir() string {
	return path.Join(c.DataDir, "jobs")
}
