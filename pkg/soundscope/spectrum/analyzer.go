package spectrum

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
)

// ErrBandUnavailable marks a band that could not be measured at all.
var ErrBandUnavailable = errors.New("band unavailable")

// Analyzer measures the band table for one file.
type Analyzer struct {
	Runner     engine.Runner
	FFmpegPath string
	Parsers    []Parser
	Log        *logger.Logger
}

func NewAnalyzer(runner engine.Runner, ffmpegPath string, log *logger.Logger) *Analyzer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{
		Runner:     runner,
		FFmpegPath: ffmpegPath,
		Parsers:    DefaultParsers(),
		Log:        log,
	}
}

// Measure always returns a full profile. The single-pass graph is tried
// first; if its output cannot be parsed every band is measured by its own
// process. Band edges are clamped under the Nyquist limit of sampleRate and
// bands lying wholly above it are not measured. Bands that cannot be measured
// carry models.SentinelDb.
func (a *Analyzer) Measure(ctx context.Context, path string, sampleRate int) models.SpectralProfile {
	idx, bands := Measurable(sampleRate)
	if len(bands) == 0 {
		a.Log.Warnf("no band fits under %d Hz sampling for %s", sampleRate, path)
		return SentinelProfile()
	}
	if skipped := BandCount - len(bands); skipped > 0 {
		a.Log.Debugf("%d band(s) above Nyquist at %d Hz for %s", skipped, sampleRate, path)
	}

	levels, err := a.singlePass(ctx, path, bands)
	if err == nil {
		return profileAt(idx, levels)
	}
	if ctx.Err() != nil {
		a.Log.Debugf("spectral analysis cancelled for %s", path)
		return SentinelProfile()
	}

	a.logFailure("single-pass spectral analysis", path, err)
	a.Log.Infof("falling back to %d per-band passes for %s", len(bands), path)
	return profileAt(idx, a.perBand(ctx, path, bands))
}

func (a *Analyzer) singlePass(ctx context.Context, path string, bands []Band) ([]float64, error) {
	out, err := a.Runner.Run(ctx, engine.Invocation{
		Binary: a.FFmpegPath,
		Args:   SinglePassArgs(path, bands),
		Label:  "spectrum",
	})
	if err != nil {
		return nil, err
	}

	levels, parser, err := parseChain(a.Parsers, out.Stderr, len(bands))
	if err != nil {
		if parser != "" {
			return nil, fmt.Errorf("%s parser: %w", parser, err)
		}
		return nil, err
	}
	a.Log.Debugf("single-pass spectrum for %s parsed by %s parser", path, parser)
	return levels, nil
}

// perBand runs one process per band. Each goroutine owns one slot of levels.
func (a *Analyzer) perBand(ctx context.Context, path string, bands []Band) []float64 {
	levels := make([]float64, len(bands))

	var g errgroup.Group
	for i, b := range bands {
		i, b := i, b
		g.Go(func() error {
			v, err := a.measureBand(ctx, path, b)
			if err != nil {
				a.logFailure(fmt.Sprintf("band %s", b.Name), path, fmt.Errorf("%w: %v", ErrBandUnavailable, err))
				v = models.SentinelDb
			}
			levels[i] = v
			return nil
		})
	}
	_ = g.Wait()
	return levels
}

func (a *Analyzer) measureBand(ctx context.Context, path string, b Band) (float64, error) {
	out, err := a.Runner.Run(ctx, engine.Invocation{
		Binary: a.FFmpegPath,
		Args:   BandArgs(path, b),
		Label:  "band " + b.Name,
	})
	if err != nil {
		return 0, err
	}
	return lastLevel(out.Stderr)
}

func (a *Analyzer) logFailure(what, path string, err error) {
	switch {
	case errors.Is(err, engine.ErrTimeout):
		a.Log.Warnf("%s timed out for %s: %v", what, path, err)
	case errors.Is(err, engine.ErrEngineSpawn):
		a.Log.Errorf("%s could not start for %s: %v", what, path, err)
	case errors.Is(err, context.Canceled):
		a.Log.Debugf("%s cancelled for %s", what, path)
	default:
		a.Log.Warnf("%s failed for %s: %v", what, path, err)
	}
}
