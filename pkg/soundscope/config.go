package soundscope

import (
	"os"
	"time"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/storage"
)

type Config struct {
	DBPath         string
	TempDir        string
	FFmpegPath     string
	FFprobePath    string
	MaxProcesses   int
	ProcessTimeout time.Duration
	Logger         *logger.Logger
	Storage        Storage
	Runner         engine.Runner
	Feedback       FeedbackGenerator
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithFFmpegPath(path string) Option {
	return func(c *Config) {
		c.FFmpegPath = path
	}
}

func WithFFprobePath(path string) Option {
	return func(c *Config) {
		c.FFprobePath = path
	}
}

// WithMaxProcesses caps how many engine processes run at once across all
// requests. Values below 1 select the default.
func WithMaxProcesses(n int) Option {
	return func(c *Config) {
		c.MaxProcesses = n
	}
}

// WithProcessTimeout bounds each engine invocation, measured from its start.
func WithProcessTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ProcessTimeout = d
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithStorage(storage Storage) Option {
	return func(c *Config) {
		c.Storage = storage
	}
}

// WithRunner replaces the process runner. The runner is still wrapped in
// the service's pool.
func WithRunner(r engine.Runner) Option {
	return func(c *Config) {
		c.Runner = r
	}
}

func WithFeedback(f FeedbackGenerator) Option {
	return func(c *Config) {
		c.Feedback = f
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:         storage.DefaultDBFile,
		TempDir:        os.TempDir(),
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		MaxProcesses:   engine.DefaultPoolSize(),
		ProcessTimeout: engine.DefaultTimeout,
	}
}
