package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/soundscope"
)

var version = "0.1.0"

// CLI defines the command-line interface
type CLI struct {
	DB      string           `name:"db" env:"SOUNDSCOPE_DB_PATH" default:"soundscope.sqlite3" help:"Path to the SQLite database of saved references"`
	FFmpeg  string           `name:"ffmpeg" env:"SOUNDSCOPE_FFMPEG" default:"ffmpeg" help:"ffmpeg binary"`
	FFprobe string           `name:"ffprobe" env:"SOUNDSCOPE_FFPROBE" default:"ffprobe" help:"ffprobe binary"`
	Procs   int              `name:"procs" env:"SOUNDSCOPE_MAX_PROCS" default:"0" help:"Maximum concurrent engine processes (0 picks one per CPU, at most 8)"`
	Timeout time.Duration    `name:"timeout" default:"2m" help:"Timeout for a single engine process"`
	JSON    bool             `name:"json" help:"Print results as JSON"`
	Verbose bool             `short:"v" help:"Show progress logs"`
	Version kong.VersionFlag `help:"Show version information"`

	Analyze   AnalyzeCmd   `cmd:"" help:"Measure a mix, optionally against a reference track or genre preset"`
	Presets   PresetsCmd   `cmd:"" help:"List genre loudness presets"`
	Reference ReferenceCmd `cmd:"" help:"Manage saved reference tracks"`
}

// newService creates the service with the global options.
func (c *CLI) newService() (soundscope.Service, error) {
	return soundscope.NewService(
		soundscope.WithDBPath(c.DB),
		soundscope.WithFFmpegPath(c.FFmpeg),
		soundscope.WithFFprobePath(c.FFprobe),
		soundscope.WithMaxProcesses(c.Procs),
		soundscope.WithProcessTimeout(c.Timeout),
		soundscope.WithLogger(logger.GetLogger()),
	)
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("soundscope"),
		kong.Description("Loudness and spectral balance analysis for audio mixes"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if cli.Verbose {
		logger.SetLevel(logger.DEBUG)
	} else if os.Getenv("LOG_LEVEL") == "" {
		logger.SetLevel(logger.WARN)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(cli); err != nil {
		PrintError(err.Error())
		os.Exit(1)
	}
}
