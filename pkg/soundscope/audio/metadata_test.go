package audio

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/himanishpuri/SoundScope/internal/audiotest"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
)

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "width": 500},
    {"codec_type": "audio", "sample_rate": "48000", "channels": 2, "bits_per_sample": 0, "bits_per_raw_sample": "24"}
  ],
  "format": {"filename": "mix.flac", "format_name": "flac", "duration": "183.250000"}
}`

func TestParseFFprobe(t *testing.T) {
	meta, err := ParseFFprobe([]byte(probeJSON))
	if err != nil {
		t.Fatalf("ParseFFprobe failed: %v", err)
	}
	if meta.SampleRate != 48000 || meta.Channels != 2 || meta.BitDepth != 24 {
		t.Errorf("unexpected stream facts: %+v", meta)
	}
	if meta.Format != "flac" || math.Abs(meta.DurationSec-183.25) > 1e-9 {
		t.Errorf("unexpected format facts: %+v", meta)
	}
}

func TestParseFFprobeNoAudio(t *testing.T) {
	_, err := ParseFFprobe([]byte(`{"streams":[{"codec_type":"video"}],"format":{}}`))
	if err == nil {
		t.Error("expected error for a file without audio streams")
	}
}

func TestExtractUsesFFprobe(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: func(inv engine.Invocation) audiotest.Response {
		return audiotest.Response{Output: engine.Output{Stdout: probeJSON}}
	}}
	ex := NewExtractor(runner, "ffprobe-test", nil)

	meta, err := ex.Extract(context.Background(), "mix.flac")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if meta.Format != "flac" {
		t.Errorf("expected flac, got %q", meta.Format)
	}
	calls := runner.Calls()
	if len(calls) != 1 || calls[0].Binary != "ffprobe-test" {
		t.Errorf("unexpected invocations: %+v", calls)
	}
}

func TestExtractFallsBackToWAVHeader(t *testing.T) {
	path := audiotest.SilentWAV(t, 22050, 2, 0.5)
	runner := &audiotest.ScriptedRunner{Handler: func(inv engine.Invocation) audiotest.Response {
		return audiotest.Response{Err: engine.ErrEngineSpawn}
	}}

	meta, err := NewExtractor(runner, "", nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if meta.Format != "wav" || meta.SampleRate != 22050 || meta.Channels != 2 || meta.BitDepth != 16 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if math.Abs(meta.DurationSec-0.5) > 0.01 {
		t.Errorf("expected ~0.5s duration, got %f", meta.DurationSec)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("INVALID HEADER DATA"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &audiotest.ScriptedRunner{Handler: func(inv engine.Invocation) audiotest.Response {
		return audiotest.Response{Output: engine.Output{Stdout: `{"streams":[],"format":{}}`}}
	}}

	_, err := NewExtractor(runner, "", nil).Extract(context.Background(), path)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExtractWithFFprobe(t *testing.T) {
	audiotest.RequireFFmpeg(t)
	path := audiotest.ToneWAV(t, 440, 0.5, 44100, 1, 1)

	meta, err := NewExtractor(engine.NewExecRunner(0), "ffprobe", nil).Extract(context.Background(), path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if meta.SampleRate != 44100 || meta.Channels != 1 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}
