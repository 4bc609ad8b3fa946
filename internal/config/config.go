package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Swap     SwapConfig     `yaml:"swap"`
	Database DatabaseConfig `yaml:"database"`
	Web      WebConfig      `yaml:"-"`
	Log      LogConfig      `yaml:"-"`
}

type EngineConfig struct {
	URL          string `yaml:"url"`           // face2face sidecar base URL
	EnhanceModel string `yaml:"enhance_model"` // model used when enhancement is enabled
}

type SwapConfig struct {
	OutputDir         string        `yaml:"output_dir"`
	StagingDir        string        `yaml:"staging_dir"` // empty means os.TempDir()
	FaceLabel         string        `yaml:"face_label"`
	PersistFaces      bool          `yaml:"persist_faces"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MinFreeMB         int           `yaml:"min_free_mb"`
	MaxConcurrentJobs int           `yaml:"max_concurrent_jobs"`
	JPEGQuality       int           `yaml:"jpeg_quality"`
	VerifyVideos      bool          `yaml:"verify_videos"` // compare durations with ffprobe after each video swap
}

// MinFreeBytes returns the free-space floor for the staging dir in bytes.
func (c *SwapConfig) MinFreeBytes() uint64 {
	if c.MinFreeMB <= 0 {
		return 0
	}
	return uint64(c.MinFreeMB) * 1024 * 1024
}

type DatabaseConfig struct {
	URL           string `yaml:"-"`              // PostgreSQL connection URL
	FaceStorePath string `yaml:"face_store_path"` // gob file used when URL is empty
	MaxOpenConns  int    `yaml:"max_open_conns"`
	MaxIdleConns  int    `yaml:"max_idle_conns"`
}

type WebConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string // extra CORS origins; localhost is always allowed
}

type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envBool reads a boolean environment variable, keeping the default when unset or invalid.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return defaultVal
	}
	return b
}

// envDuration reads a duration like "45m" from the environment.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

// envList splits a comma-separated variable, dropping empty items.
func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the configuration embedded in defaults.yaml without any
// environment overrides applied.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	cfg.Web = WebConfig{Host: "0.0.0.0", Port: 7860}
	cfg.Log = LogConfig{Level: "info", Format: "console"}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Engine.URL = envString("FACESWAP_ENGINE_URL", cfg.Engine.URL)
	cfg.Engine.EnhanceModel = envString("SWAP_ENHANCE_MODEL", cfg.Engine.EnhanceModel)

	cfg.Swap.OutputDir = envString("SWAP_OUTPUT_DIR", cfg.Swap.OutputDir)
	cfg.Swap.StagingDir = envString("SWAP_STAGING_DIR", cfg.Swap.StagingDir)
	cfg.Swap.FaceLabel = envString("SWAP_FACE_LABEL", cfg.Swap.FaceLabel)
	cfg.Swap.PersistFaces = envBool("SWAP_PERSIST_FACES", cfg.Swap.PersistFaces)
	cfg.Swap.RequestTimeout = envDuration("SWAP_REQUEST_TIMEOUT", cfg.Swap.RequestTimeout)
	cfg.Swap.MinFreeMB = envInt("SWAP_MIN_FREE_MB", cfg.Swap.MinFreeMB)
	cfg.Swap.MaxConcurrentJobs = envInt("SWAP_MAX_CONCURRENT_JOBS", cfg.Swap.MaxConcurrentJobs)
	cfg.Swap.JPEGQuality = envInt("SWAP_JPEG_QUALITY", cfg.Swap.JPEGQuality)
	cfg.Swap.VerifyVideos = envBool("SWAP_VERIFY_VIDEOS", cfg.Swap.VerifyVideos)

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.FaceStorePath = envString("FACE_STORE_PATH", cfg.Database.FaceStorePath)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS")

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)

	return cfg
}

// EnhanceModelFor maps the enhancement toggle to a model identifier.
// Disabled enhancement yields an empty identifier, never a placeholder.
func (c *Config) EnhanceModelFor(enhance bool) string {
	if !enhance {
		return ""
	}
	return c.Engine.EnhanceModel
}
