package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig
	Apify     ApifyConfig
	Proxy     ProxyConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Runner    RunnerConfig
	Archive   ArchiveConfig
	DBPath    string
	LogPath   string
}

type DatabaseConfig struct {
	URL string
}

type ApifyConfig struct {
	APIKey       string
	Actor        string
	ResultsLimit int
}

type ProxyConfig struct {
	URL string
}

type ServerConfig struct {
	Port        string
	CronSecret  string
	JWTSecret   string
	CORSOrigins []string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type RunnerConfig struct {
	GroupSize int
}

// ArchiveConfig points at an S3-compatible bucket for batch reports.
// Empty Bucket disables archiving.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// SeedFile is one YAML file under config/monitors
type SeedFile struct {
	UserID   string        `yaml:"user_id"`
	Email    string        `yaml:"email"`
	Monitors []SeedMonitor `yaml:"monitors"`
}

type SeedMonitor struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	CheckFrequency string `yaml:"check_frequency"`
	Active         *bool  `yaml:"active"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Apify: ApifyConfig{
			APIKey:       os.Getenv("APIFY_API_KEY"),
			Actor:        getEnv("APIFY_ACTOR", "facebook-marketplace"),
			ResultsLimit: getEnvInt("APIFY_RESULTS_LIMIT", 20),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			CronSecret:  os.Getenv("CRON_SECRET"),
			JWTSecret:   os.Getenv("JWT_SECRET"),
			CORSOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("RUNNER_CRON"),
		},
		Runner: RunnerConfig{
			GroupSize: getEnvInt("RUNNER_GROUP_SIZE", 10),
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
		DBPath:  getEnv("DB_PATH", "watcher.db"),
		LogPath: getEnv("LOG_PATH", "daemon.log"),
	}

	if interval := os.Getenv("RUNNER_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.Runner.GroupSize <= 0 {
		cfg.Runner.GroupSize = 10
	}

	return cfg, nil
}

// LoadSeeds reads every YAML file in dir. A missing directory yields nothing.
func LoadSeeds(dir string) ([]SeedFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var seeds []SeedFile
	for _, entry := range entries {
		if entry.IsDir() || (filepath.Ext(entry.Name()) != ".yaml" && filepath.Ext(entry.Name()) != ".yml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		var seed SeedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
