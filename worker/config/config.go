package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"videoDownloader/worker/converter"
)

// Config tunes the download pipeline. Every retry and fallback threshold
// lives here rather than in the adapters.
type Config struct {
	WorkerCount int `mapstructure:"worker_count"`

	TempDir      string `mapstructure:"temp_dir"`
	ConvertedDir string `mapstructure:"converted_dir"`
	LogDir       string `mapstructure:"log_dir"`
	CookiesPath  string `mapstructure:"cookies_path"`

	ExtractMaxAttempts int           `mapstructure:"extract_max_attempts"`
	ExtractBackoff     time.Duration `mapstructure:"extract_backoff"`
	ExtractMaxBackoff  time.Duration `mapstructure:"extract_max_backoff"`
	ExtractTimeout     time.Duration `mapstructure:"extract_timeout"`
	RateLimitCooldown  time.Duration `mapstructure:"rate_limit_cooldown"`

	PrimaryCodec     string        `mapstructure:"primary_codec"`
	FallbackCodec    string        `mapstructure:"fallback_codec"`
	TranscodeTimeout time.Duration `mapstructure:"transcode_timeout"`
	VerifyOutput     bool          `mapstructure:"verify_output"`

	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	MinFileSize  int64         `mapstructure:"min_file_size"`

	ThumbnailEnabled bool          `mapstructure:"thumbnail_enabled"`
	ThumbnailWidth   int           `mapstructure:"thumbnail_width"`
	ThumbnailTimeout time.Duration `mapstructure:"thumbnail_timeout"`

	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	TempMaxAge    time.Duration `mapstructure:"temp_max_age"`
}

type StorageConfig struct {
	CloudinaryURL string        `mapstructure:"cloudinary_url"`
	Folder        string        `mapstructure:"folder"`
	MaxBytes      int64         `mapstructure:"max_bytes"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

// SetDefaults registers the pipeline defaults under the worker and storage
// keys of v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("worker.worker_count", 2)

	v.SetDefault("worker.temp_dir", "temp")
	v.SetDefault("worker.converted_dir", "converted")
	v.SetDefault("worker.log_dir", "logs")
	v.SetDefault("worker.cookies_path", "cookies.txt")

	v.SetDefault("worker.extract_max_attempts", 3)
	v.SetDefault("worker.extract_backoff", 5*time.Second)
	v.SetDefault("worker.extract_max_backoff", time.Minute)
	v.SetDefault("worker.extract_timeout", 10*time.Minute)
	v.SetDefault("worker.rate_limit_cooldown", 2*time.Minute)

	v.SetDefault("worker.primary_codec", string(converter.CodecHEVC))
	v.SetDefault("worker.fallback_codec", string(converter.CodecH264))
	v.SetDefault("worker.transcode_timeout", 30*time.Minute)
	v.SetDefault("worker.verify_output", true)

	v.SetDefault("worker.probe_timeout", 30*time.Second)
	v.SetDefault("worker.min_file_size", 1024)

	v.SetDefault("worker.thumbnail_enabled", true)
	v.SetDefault("worker.thumbnail_width", 480)
	v.SetDefault("worker.thumbnail_timeout", time.Minute)

	v.SetDefault("worker.sweep_interval", 30*time.Minute)
	v.SetDefault("worker.temp_max_age", 6*time.Hour)

	v.SetDefault("storage.cloudinary_url", "")
	v.SetDefault("storage.folder", "youtube_downloads")
	v.SetDefault("storage.max_bytes", 100*1024*1024)
	v.SetDefault("storage.upload_timeout", 10*time.Minute)
}

func (c *Config) Validate() error {
	if c.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be at least 1, got %d", c.WorkerCount)
	}
	if c.ExtractMaxAttempts < 1 {
		return fmt.Errorf("extract_max_attempts must be at least 1, got %d", c.ExtractMaxAttempts)
	}
	primary, err := converter.ParseCodec(c.PrimaryCodec)
	if err != nil {
		return fmt.Errorf("primary_codec: %w", err)
	}
	fallback, err := converter.ParseCodec(c.FallbackCodec)
	if err != nil {
		return fmt.Errorf("fallback_codec: %w", err)
	}
	if primary == fallback {
		return fmt.Errorf("fallback_codec must differ from primary_codec %q", primary)
	}
	if c.TempDir == "" || c.ConvertedDir == "" {
		return fmt.Errorf("temp_dir and converted_dir are required")
	}
	return nil
}

// Dirs lists the directories the pipeline writes into.
func (c *Config) Dirs() []string {
	return []string{c.TempDir, c.ConvertedDir, c.LogDir}
}

func (s *StorageConfig) Validate() error {
	if s.CloudinaryURL == "" {
		return fmt.Errorf("CLOUDINARY_URL is not set")
	}
	return nil
}

// EnsureDirs creates the pipeline directories if they are missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range c.Dirs() {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
