// Package loudness measures EBU R128 integrated loudness, loudness range and
// true peak with ffmpeg's loudnorm filter in analysis-only mode.
package loudness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
)

// ErrLoudnessUnavailable means the loudness summary could not be obtained.
var ErrLoudnessUnavailable = errors.New("loudness unavailable")

// Filter is the analysis pass. The targets only matter for normalisation,
// which never happens because the output goes to the null muxer.
const Filter = "loudnorm=I=-16:TP=-1.5:LRA=11:print_format=summary"

var (
	reIntegrated = regexp.MustCompile(`(?m)^\s*Input Integrated:\s*(\S+)\s*LUFS\s*$`)
	reTruePeak   = regexp.MustCompile(`(?m)^\s*Input True Peak:\s*(\S+)\s*dBTP\s*$`)
	reRange      = regexp.MustCompile(`(?m)^\s*Input LRA:\s*(\S+)\s*LU\s*$`)
)

// Analyzer drives the loudness pass.
type Analyzer struct {
	Runner     engine.Runner
	FFmpegPath string
	Log        *logger.Logger
}

func NewAnalyzer(runner engine.Runner, ffmpegPath string, log *logger.Logger) *Analyzer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Analyzer{Runner: runner, FFmpegPath: ffmpegPath, Log: log}
}

// Args is the ffmpeg command line for one loudness pass over path.
func Args(path string) []string {
	return []string{
		"-hide_banner", "-nostats", "-nostdin",
		"-i", path,
		"-vn", "-sn", "-dn",
		"-af", Filter,
		"-f", "null", "-",
	}
}

// Measure returns the loudness of path, or nil if it could not be measured.
// Failures are logged, never returned: a missing loudness figure does not
// stop the rest of the analysis.
func (a *Analyzer) Measure(ctx context.Context, path string) *models.LoudnessMeasurement {
	m, err := a.measure(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrTimeout):
			a.Log.Warnf("loudness pass timed out for %s: %v", path, err)
		case errors.Is(err, engine.ErrEngineSpawn):
			a.Log.Errorf("loudness pass could not start for %s: %v", path, err)
		case ctx.Err() != nil:
			a.Log.Debugf("loudness pass cancelled for %s", path)
		default:
			a.Log.Warnf("%v (%s)", err, path)
		}
		return nil
	}
	return m
}

func (a *Analyzer) measure(ctx context.Context, path string) (*models.LoudnessMeasurement, error) {
	out, err := a.Runner.Run(ctx, engine.Invocation{
		Binary: a.FFmpegPath,
		Args:   Args(path),
		Label:  "loudness",
	})
	if err != nil {
		return nil, err
	}
	return Parse(out.Stderr)
}

// Parse extracts the loudnorm summary from ffmpeg's diagnostic output. All
// three values must be present and finite; otherwise the whole measurement
// is ErrLoudnessUnavailable.
func Parse(diag string) (*models.LoudnessMeasurement, error) {
	if diag == "" {
		return nil, fmt.Errorf("%w: empty diagnostic output", ErrLoudnessUnavailable)
	}

	integrated, err := field(reIntegrated, diag, "integrated loudness")
	if err != nil {
		return nil, err
	}
	lra, err := field(reRange, diag, "loudness range")
	if err != nil {
		return nil, err
	}
	tp, err := field(reTruePeak, diag, "true peak")
	if err != nil {
		return nil, err
	}

	return &models.LoudnessMeasurement{
		Integrated: integrated,
		Range:      lra,
		TruePeak:   tp,
	}, nil
}

func field(re *regexp.Regexp, diag, name string) (float64, error) {
	// The last match wins if the summary was printed more than once.
	matches := re.FindAllStringSubmatch(diag, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("%w: no %s in summary", ErrLoudnessUnavailable, name)
	}
	raw := matches[len(matches)-1][1]
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: %s is %q", ErrLoudnessUnavailable, name, raw)
	}
	return v, nil
}
