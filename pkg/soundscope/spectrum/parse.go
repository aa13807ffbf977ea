package spectrum

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/himanishpuri/SoundScope/pkg/models"
)

var (
	// ErrNoMatch means a parser found nothing in the format it understands,
	// so the next parser may try.
	ErrNoMatch = errors.New("no recognisable statistics")

	// ErrIncomplete means a parser recognised the output but could not
	// recover every band.
	ErrIncomplete = errors.New("incomplete band statistics")
)

var (
	// [astats@band3 @ 0x55d0c6a4b2c0] RMS level dB: -31.204
	reTagged = regexp.MustCompile(`^\[([^\]\s]+)\s+@\s+[^\]]*\]\s*(.*)$`)
	reBandID = regexp.MustCompile(`band(\d+)`)
	reRMS    = regexp.MustCompile(`RMS level dB:\s*(\S+)`)
)

// Parser recovers one RMS level per band from ffmpeg's diagnostic output.
// Implementations return exactly n values, ErrNoMatch when the output is not
// in their format, or another error when it is but cannot be trusted.
type Parser interface {
	Name() string
	Parse(diag string, n int) ([]float64, error)
}

// DefaultParsers is the order the single-pass output is tried in.
func DefaultParsers() []Parser {
	return []Parser{TaggedParser{}, StrideParser{}}
}

// parseChain tries each parser in turn. Only ErrNoMatch moves on to the
// next one.
func parseChain(parsers []Parser, diag string, n int) ([]float64, string, error) {
	err := ErrNoMatch
	for _, p := range parsers {
		var levels []float64
		levels, err = p.Parse(diag, n)
		if err == nil {
			return levels, p.Name(), nil
		}
		if !errors.Is(err, ErrNoMatch) {
			return nil, p.Name(), err
		}
	}
	return nil, "", err
}

// level converts an astats value to dB, clamping at the sentinel floor.
// astats prints -inf for digital silence.
func level(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 1) {
		return 0, false
	}
	if v < models.SentinelDb {
		v = models.SentinelDb
	}
	return v, true
}

// TaggedParser reads statistics blocks whose log tag names the chain, as
// produced by astats instances named band<i>. A block's Overall RMS level is
// preferred; the last per-channel value is used when there is no Overall
// section.
type TaggedParser struct{}

func (TaggedParser) Name() string { return "tagged" }

func (TaggedParser) Parse(diag string, n int) ([]float64, error) {
	overall := make(map[int]float64)
	channel := make(map[int]float64)
	inOverall := make(map[int]bool)

	sc := bufio.NewScanner(strings.NewReader(diag))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		m := reTagged.FindStringSubmatch(strings.TrimSpace(sc.Text()))
		if m == nil {
			continue
		}
		id := reBandID.FindStringSubmatch(m[1])
		if id == nil {
			continue
		}
		idx, err := strconv.Atoi(id[1])
		if err != nil || idx < 0 || idx >= n {
			continue
		}

		body := strings.TrimSpace(m[2])
		switch {
		case body == "Overall":
			inOverall[idx] = true
		case strings.HasPrefix(body, "Channel:"):
			inOverall[idx] = false
		default:
			rm := reRMS.FindStringSubmatch(body)
			if rm == nil {
				continue
			}
			v, ok := level(rm[1])
			if !ok {
				continue
			}
			if inOverall[idx] {
				overall[idx] = v
			} else {
				channel[idx] = v
			}
		}
	}

	if len(overall) == 0 && len(channel) == 0 {
		return nil, ErrNoMatch
	}

	levels := make([]float64, n)
	for i := 0; i < n; i++ {
		if v, ok := overall[i]; ok {
			levels[i] = v
		} else if v, ok := channel[i]; ok {
			levels[i] = v
		} else {
			return nil, fmt.Errorf("%w: no tagged block for band %d", ErrIncomplete, i)
		}
	}
	return levels, nil
}

// StrideParser ignores tags and collects every RMS level in emission order.
// Each chain is assumed to report 1, 2 or 3 values (mono, channel+overall,
// two channels+overall), with the combined value last; the stride is
// inferred from the total count. The total must be exactly n chains times
// the stride, otherwise the values cannot be aligned and the result is
// ErrIncomplete.
type StrideParser struct{}

func (StrideParser) Name() string { return "stride" }

func (StrideParser) Parse(diag string, n int) ([]float64, error) {
	var values []float64
	for _, m := range reRMS.FindAllStringSubmatch(diag, -1) {
		if v, ok := level(m[1]); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return nil, ErrNoMatch
	}

	stride := InferStride(len(values), n)
	if len(values) != n*stride {
		return nil, fmt.Errorf("%w: %d values do not split into %d chains", ErrIncomplete, len(values), n)
	}
	levels := make([]float64, 0, n)
	for i := stride - 1; i < len(values); i += stride {
		levels = append(levels, values[i])
	}
	return levels, nil
}

// InferStride picks how many RMS values each of n chains emitted, given
// count values in total. It cannot tell apart layouts whose totals share a
// multiple, so a 24-value mono run would read as stride 2.
func InferStride(count, n int) int {
	switch {
	case count > 0 && count%(3*n) == 0:
		return 3
	case count > 0 && count%(2*n) == 0:
		return 2
	default:
		return 1
	}
}

// lastLevel returns the final RMS level in a single-band run, which is the
// Overall value when astats printed one.
func lastLevel(diag string) (float64, error) {
	matches := reRMS.FindAllStringSubmatch(diag, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if v, ok := level(matches[i][1]); ok {
			return v, nil
		}
	}
	return 0, ErrNoMatch
}
