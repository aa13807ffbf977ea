// Package spectrum measures RMS energy in twelve fixed frequency bands by
// running band-isolating filter chains through ffmpeg's astats filter.
package spectrum

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/SoundScope/pkg/models"
)

// Band is one fixed row of the band table.
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// Bands is the band table. Every measurement path reports exactly these
// ranges in this order.
var Bands = [...]Band{
	{"Sub-Bass", 20, 60},
	{"Bass", 60, 150},
	{"Upper Bass", 150, 250},
	{"Low-Mid", 250, 400},
	{"Mid", 400, 800},
	{"Upper Mid", 800, 1500},
	{"Presence-Low", 1500, 2500},
	{"Presence", 2500, 4000},
	{"Upper Presence", 4000, 5500},
	{"Brilliance-Low", 5500, 8000},
	{"Brilliance", 8000, 12000},
	{"Air", 12000, 20000},
}

// BandCount is len(Bands).
const BandCount = len(Bands)

// IndexOf returns the table position of the named band, or -1.
func IndexOf(name string) int {
	for i, b := range Bands {
		if strings.EqualFold(b.Name, name) {
			return i
		}
	}
	return -1
}

// EdgeLimit is the highest filter frequency usable at sampleRate: 98% of
// Nyquist, rounded down to a whole hertz. ffmpeg refuses to configure a
// biquad above Nyquist. Zero means the rate is unknown and nothing is clamped.
func EdgeLimit(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(sampleRate * 49 / 100)
}

// Clamp holds the band's edges under EdgeLimit(sampleRate). It reports false
// when the whole band lies above the limit and cannot be measured.
func (b Band) Clamp(sampleRate int) (Band, bool) {
	if sampleRate <= 0 {
		return b, true
	}
	limit := EdgeLimit(sampleRate)
	if b.LowHz >= limit {
		return b, false
	}
	b.HighHz = min(b.HighHz, limit)
	return b, true
}

// Measurable returns the table positions that can be measured at sampleRate
// together with their clamped bands, in table order.
func Measurable(sampleRate int) ([]int, []Band) {
	idx := make([]int, 0, BandCount)
	bands := make([]Band, 0, BandCount)
	for i, b := range Bands {
		if cb, ok := b.Clamp(sampleRate); ok {
			idx = append(idx, i)
			bands = append(bands, cb)
		}
	}
	return idx, bands
}

// statsFilter reports per-channel and overall RMS levels to the log.
const statsFilter = "astats"

// isolate returns a band-pass built from ffmpeg's 2-pole highpass and
// lowpass primitives. stages=2 gives 4 poles (24 dB/octave) per edge.
func isolate(b Band, stages int) string {
	parts := make([]string, 0, 2*stages)
	for i := 0; i < stages; i++ {
		parts = append(parts, fmt.Sprintf("highpass=f=%g:p=2", b.LowHz))
	}
	for i := 0; i < stages; i++ {
		parts = append(parts, fmt.Sprintf("lowpass=f=%g:p=2", b.HighHz))
	}
	return strings.Join(parts, ",")
}

// Graph builds the single-pass filter graph: the input is split into one
// chain per band, each chain is isolated with 4-pole edges and measured by
// an astats instance named band<i>, and its output is labelled [b<i>]. i is
// the chain's position in bands, which callers clamp first.
func Graph(bands []Band) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[0:a]asplit=%d", len(bands))
	for i := range bands {
		fmt.Fprintf(&sb, "[s%d]", i)
	}
	for i, b := range bands {
		fmt.Fprintf(&sb, ";[s%d]%s,%s@band%d[b%d]", i, isolate(b, 2), statsFilter, i, i)
	}
	return sb.String()
}

// SinglePassArgs is the ffmpeg command line for the one-read measurement.
// Every chain output goes to the null muxer.
func SinglePassArgs(path string, bands []Band) []string {
	args := []string{
		"-hide_banner", "-nostats", "-nostdin",
		"-loglevel", "info",
		"-i", path,
		"-filter_complex", Graph(bands),
	}
	for i := range bands {
		args = append(args, "-map", fmt.Sprintf("[b%d]", i))
	}
	return append(args, "-f", "null", "-")
}

// BandArgs is the ffmpeg command line measuring one band on its own, with a
// single 2-pole stage per edge.
func BandArgs(path string, b Band) []string {
	return []string{
		"-hide_banner", "-nostats", "-nostdin",
		"-loglevel", "info",
		"-i", path,
		"-vn", "-sn", "-dn",
		"-af", isolate(b, 1) + "," + statsFilter,
		"-f", "null", "-",
	}
}

// profileAt places levels[j] at table position idx[j]. Positions not in idx
// keep models.SentinelDb. The reported edges are always the table's.
func profileAt(idx []int, levels []float64) models.SpectralProfile {
	p := SentinelProfile()
	for j, i := range idx {
		if j < len(levels) {
			p[i].RMSDb = levels[j]
		}
	}
	return p
}

// SentinelProfile is a profile where no band could be measured.
func SentinelProfile() models.SpectralProfile {
	p := make(models.SpectralProfile, BandCount)
	for i, b := range Bands {
		p[i] = models.FrequencyBand{
			Name:   b.Name,
			LowHz:  b.LowHz,
			HighHz: b.HighHz,
			RMSDb:  models.SentinelDb,
		}
	}
	return p
}
