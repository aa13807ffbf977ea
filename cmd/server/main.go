package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/soundscope"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
)

var (
	port           int
	dbPath         string
	tempDir        string
	ffmpegPath     string
	ffprobePath    string
	maxProcs       int
	processTimeout time.Duration
	requestTimeout time.Duration
	allowedOrigins string
	logRequests    bool
)

func init() {
	flag.IntVar(&port, "port", envInt("PORT", 8080), "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SOUNDSCOPE_DB_PATH", "soundscope.sqlite3"), "Path to SQLite database of saved references")
	flag.StringVar(&tempDir, "temp", getEnvOrDefault("SOUNDSCOPE_TEMP_DIR", os.TempDir()), "Directory for staged uploads")
	flag.StringVar(&ffmpegPath, "ffmpeg", getEnvOrDefault("SOUNDSCOPE_FFMPEG", "ffmpeg"), "ffmpeg binary")
	flag.StringVar(&ffprobePath, "ffprobe", getEnvOrDefault("SOUNDSCOPE_FFPROBE", "ffprobe"), "ffprobe binary")
	flag.IntVar(&maxProcs, "procs", envInt("SOUNDSCOPE_MAX_PROCS", engine.DefaultPoolSize()), "Maximum concurrent engine processes")
	flag.DurationVar(&processTimeout, "process-timeout", engine.DefaultTimeout, "Timeout for a single engine process")
	flag.DurationVar(&requestTimeout, "request-timeout", 10*time.Minute, "Timeout for a whole analysis request")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
	flag.BoolVar(&logRequests, "log-requests", false, "Log every HTTP request")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func parseOrigins(s string) []string {
	if s == "*" {
		return []string{"*"}
	}
	origins := strings.Split(s, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	service, err := soundscope.NewService(
		soundscope.WithDBPath(dbPath),
		soundscope.WithTempDir(tempDir),
		soundscope.WithFFmpegPath(ffmpegPath),
		soundscope.WithFFprobePath(ffprobePath),
		soundscope.WithMaxProcesses(maxProcs),
		soundscope.WithProcessTimeout(processTimeout),
		soundscope.WithLogger(log),
	)
	if err != nil {
		log.Errorf("Failed to create service: %v", err)
		os.Exit(1)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		AllowedOrigins: parseOrigins(allowedOrigins),
		RequestTimeout: requestTimeout,
		LogRequests:    logRequests,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, config)
	if err := server.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
