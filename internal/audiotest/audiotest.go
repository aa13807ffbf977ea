// Package audiotest holds fixtures shared by the package tests: synthetic WAV
// files and a scripted engine.Runner.
package audiotest

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
)

// WriteWAV writes a 16-bit PCM WAV whose samples come from waveform, which
// receives the frame index and channel and returns a value in [-1, 1].
func WriteWAV(t *testing.T, name string, sampleRate, channels int, seconds float64, waveform func(frame, channel int) float64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create fixture: %v", err)
	}
	defer f.Close()

	frames := int(seconds * float64(sampleRate))
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, frames*channels),
		SourceBitDepth: 16,
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			v := waveform(i, c)
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			buf.Data[i*channels+c] = int(math.Round(v * 32767))
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		t.Fatalf("Failed to write fixture samples: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Failed to finalise fixture: %v", err)
	}
	return path
}

// SilentWAV writes an all-zero fixture.
func SilentWAV(t *testing.T, sampleRate, channels int, seconds float64) string {
	t.Helper()
	return WriteWAV(t, "silence.wav", sampleRate, channels, seconds, func(int, int) float64 { return 0 })
}

// ToneWAV writes a sine at freq Hz with the given peak amplitude.
func ToneWAV(t *testing.T, freq, amplitude float64, sampleRate, channels int, seconds float64) string {
	t.Helper()
	return WriteWAV(t, "tone.wav", sampleRate, channels, seconds, func(frame, _ int) float64 {
		return amplitude * math.Sin(2*math.Pi*freq*float64(frame)/float64(sampleRate))
	})
}

// RequireFFmpeg skips the test when ffmpeg or ffprobe is missing.
func RequireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}
}

// Response is a scripted reply of a ScriptedRunner.
type Response struct {
	Output engine.Output
	Err    error
}

// ScriptedRunner answers invocations through Handler and records every call.
// It also tracks how many calls overlap, like an instrumented worker.
type ScriptedRunner struct {
	Handler func(inv engine.Invocation) Response
	Delay   time.Duration

	mu     sync.Mutex
	calls  []engine.Invocation
	active atomic.Int64
	peak   atomic.Int64
}

func (r *ScriptedRunner) Run(ctx context.Context, inv engine.Invocation) (engine.Output, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()

	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		cur := r.peak.Load()
		if n <= cur || r.peak.CompareAndSwap(cur, n) {
			break
		}
	}

	if r.Delay > 0 {
		select {
		case <-time.After(r.Delay):
		case <-ctx.Done():
			return engine.Output{}, ctx.Err()
		}
	}

	resp := r.Handler(inv)
	return resp.Output, resp.Err
}

// Calls returns a copy of the recorded invocations.
func (r *ScriptedRunner) Calls() []engine.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Invocation(nil), r.calls...)
}

// CallsWithLabel counts recorded invocations whose label starts with prefix.
func (r *ScriptedRunner) CallsWithLabel(prefix string) int {
	n := 0
	for _, c := range r.Calls() {
		if strings.HasPrefix(c.Label, prefix) {
			n++
		}
	}
	return n
}

// Peak is the highest number of overlapping calls observed.
func (r *ScriptedRunner) Peak() int { return int(r.peak.Load()) }
