package soundscope

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/SoundScope/internal/audiotest"
	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/spectrum"
)

// fakeTrack is what the scripted engine reports for one path.
type fakeTrack struct {
	format     string // empty: ffprobe fails
	integrated float64
	lra        float64
	truePeak   float64
	sampleRate int // zero: 44100
	noLoudness bool
	untagged   bool // single-pass output unparseable, forcing per-band passes
}

func bandLevel(i int) float64 { return -18 - 2*float64(i) }

// fakeEngine answers ffprobe and ffmpeg invocations from a table keyed by
// input path.
func fakeEngine(tracks map[string]fakeTrack) func(engine.Invocation) audiotest.Response {
	var mu sync.Mutex
	return func(inv engine.Invocation) audiotest.Response {
		mu.Lock()
		defer mu.Unlock()

		path := inputPath(inv)
		ft, ok := tracks[path]
		if !ok {
			return audiotest.Response{Err: fmt.Errorf("no such file: %s", path)}
		}

		switch {
		case inv.Label == "metadata":
			if ft.format == "" {
				return audiotest.Response{Err: errors.New("exit status 1")}
			}
			rate := ft.sampleRate
			if rate == 0 {
				rate = 44100
			}
			return audiotest.Response{Output: engine.Output{Stdout: fmt.Sprintf(
				`{"streams":[{"codec_type":"audio","sample_rate":"%d","channels":2,"bits_per_sample":16}],`+
					`"format":{"format_name":%q,"duration":"3.000000"}}`, rate, ft.format)}}

		case inv.Label == "loudness":
			if ft.noLoudness {
				return audiotest.Response{Output: engine.Output{Stderr: "Input Integrated: -inf LUFS\n"}}
			}
			return audiotest.Response{Output: engine.Output{Stderr: fmt.Sprintf(
				"Input Integrated: %.1f LUFS\nInput True Peak: %.1f dBTP\nInput LRA: %.1f LU\n",
				ft.integrated, ft.truePeak, ft.lra)}}

		case inv.Label == "spectrum":
			if ft.untagged {
				return audiotest.Response{Output: engine.Output{Stderr: "Stream mapping:\n"}}
			}
			var sb strings.Builder
			for i := 0; i < spectrum.BandCount; i++ {
				fmt.Fprintf(&sb, "[astats@band%d @ 0x1] Overall\n", i)
				fmt.Fprintf(&sb, "[astats@band%d @ 0x1] RMS level dB: %.2f\n", i, bandLevel(i))
			}
			return audiotest.Response{Output: engine.Output{Stderr: sb.String()}}

		case strings.HasPrefix(inv.Label, "band "):
			i := spectrum.IndexOf(strings.TrimPrefix(inv.Label, "band "))
			return audiotest.Response{Output: engine.Output{Stderr: fmt.Sprintf(
				"[Parsed_astats_2 @ 0x1] RMS level dB: %.2f\n", bandLevel(i))}}
		}
		return audiotest.Response{Err: fmt.Errorf("unexpected invocation %q", inv.Label)}
	}
}

func inputPath(inv engine.Invocation) string {
	for i, a := range inv.Args {
		if a == "-i" && i+1 < len(inv.Args) {
			return inv.Args[i+1]
		}
	}
	if len(inv.Args) > 0 {
		return inv.Args[len(inv.Args)-1]
	}
	return ""
}

func newTestService(t *testing.T, runner engine.Runner, opts ...Option) Service {
	t.Helper()
	base := []Option{
		WithRunner(runner),
		WithLogger(logger.Discard()),
		WithDBPath(filepath.Join(t.TempDir(), "refs.sqlite3")),
		WithTempDir(t.TempDir()),
		WithMaxProcesses(4),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestAnalyzePrimaryWithPreset(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/mix.wav": {format: "wav", integrated: -12, lra: 6, truePeak: -0.5},
	})}
	svc := newTestService(t, runner)

	res, err := svc.Analyze(context.Background(), Request{
		Primary:  models.Track{Path: "/in/mix.wav"},
		PresetID: "pop",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if res.Primary.Track.Name != "mix.wav" {
		t.Errorf("Expected display name from path, got %q", res.Primary.Track.Name)
	}
	if res.Primary.Metadata.Format != "wav" || res.Primary.Metadata.SampleRate != 44100 {
		t.Errorf("Unexpected metadata: %+v", res.Primary.Metadata)
	}
	if res.Primary.Loudness == nil || res.Primary.Loudness.Integrated != -12 {
		t.Fatalf("Unexpected loudness: %+v", res.Primary.Loudness)
	}
	if len(res.Primary.Spectrum) != spectrum.BandCount {
		t.Fatalf("Expected %d bands, got %d", spectrum.BandCount, len(res.Primary.Spectrum))
	}
	for i, b := range res.Primary.Spectrum {
		if b.RMSDb != bandLevel(i) {
			t.Errorf("band %s: got %f want %f", b.Name, b.RMSDb, bandLevel(i))
		}
	}

	if res.Reference != nil || res.Comparison != nil {
		t.Error("No reference was given, comparison must be absent")
	}
	if res.Preset != "pop" || res.PresetComparison == nil {
		t.Fatalf("Expected pop preset comparison, got %+v", res.PresetComparison)
	}
	if res.PresetComparison.LoudnessDiff != -3 || res.PresetComparison.TruePeakDiff != 0.5 {
		t.Errorf("Unexpected preset diffs: %+v", res.PresetComparison)
	}

	if n := runner.CallsWithLabel("band "); n != 0 {
		t.Errorf("Tagged output should not trigger per-band passes, saw %d", n)
	}
}

func TestAnalyzeWithReferenceTrack(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/mix.wav": {format: "wav", integrated: -9, lra: 5, truePeak: -1},
		"/in/ref.wav": {format: "wav", integrated: -14, lra: 8, truePeak: -3},
	})}
	svc := newTestService(t, runner)

	res, err := svc.Analyze(context.Background(), Request{
		Primary:   models.Track{Path: "/in/mix.wav", Name: "Mix"},
		Reference: &models.Track{Path: "/in/ref.wav", Name: "Ref"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Reference == nil || res.Reference.Track.Name != "Ref" {
		t.Fatalf("Expected reference analysis, got %+v", res.Reference)
	}
	if res.Comparison == nil {
		t.Fatal("Expected a comparison")
	}
	if math.Abs(res.Comparison.LoudnessDiff-5) > 0.1 {
		t.Errorf("loudnessDiff = %f, want 5", res.Comparison.LoudnessDiff)
	}
	if res.Comparison.RangeDiff != -3 || res.Comparison.PeakDiff != 2 {
		t.Errorf("Unexpected comparison: %+v", res.Comparison)
	}
	if res.PresetComparison != nil || res.Preset != "" {
		t.Error("No preset was requested")
	}
}

func TestAnalyzeUnsupportedFormatIsFatal(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/mix.wav":   {format: "wav", integrated: -9},
		"/in/notes.txt": {},
	})}
	svc := newTestService(t, runner)

	res, err := svc.Analyze(context.Background(), Request{
		Primary:   models.Track{Path: "/in/mix.wav"},
		Reference: &models.Track{Path: "/in/notes.txt"},
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if res != nil {
		t.Error("A fatal error must not return a partial result")
	}
}

func TestAnalyzeUnknownPresetIsIgnored(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/mix.wav": {format: "wav", integrated: -12, lra: 6, truePeak: -0.5},
	})}
	svc := newTestService(t, runner)

	res, err := svc.Analyze(context.Background(), Request{
		Primary:  models.Track{Path: "/in/mix.wav"},
		PresetID: "metal",
	})
	if err != nil {
		t.Fatalf("An unknown preset must not fail the request: %v", err)
	}
	if res.PresetComparison != nil || res.Preset != "" {
		t.Errorf("Expected no preset comparison, got %q %+v", res.Preset, res.PresetComparison)
	}
	if res.Primary.Loudness == nil || res.Primary.Loudness.Integrated != -12 {
		t.Errorf("Primary track should still be measured, got %+v", res.Primary.Loudness)
	}
	if n := runner.CallsWithLabel("metadata"); n != 1 {
		t.Errorf("Expected one metadata call, got %d", n)
	}
}

func TestAnalyzeClampsSpectrumToSampleRate(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/voice.wav": {format: "wav", integrated: -16, sampleRate: 22050},
	})}
	svc := newTestService(t, runner)

	res, err := svc.Analyze(context.Background(), Request{Primary: models.Track{Path: "/in/voice.wav"}})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if n := runner.CallsWithLabel("band "); n != 0 {
		t.Errorf("22.05 kHz input should parse on the single pass, saw %d per-band passes", n)
	}
	for _, c := range runner.Calls() {
		if c.Label == "spectrum" && strings.Contains(strings.Join(c.Args, " "), "f=20000") {
			t.Error("single pass asks for an edge above Nyquist")
		}
	}

	air := spectrum.IndexOf("Air")
	for i, b := range res.Primary.Spectrum {
		want := bandLevel(i)
		if i == air {
			want = models.SentinelDb
		}
		if b.RMSDb != want {
			t.Errorf("band %s: got %f want %f", b.Name, b.RMSDb, want)
		}
	}
}

func TestAnalyzeValidatesRequest(t *testing.T) {
	svc := newTestService(t, &audiotest.ScriptedRunner{Handler: fakeEngine(nil)})

	if _, err := svc.Analyze(context.Background(), Request{}); !errors.Is(err, ErrMissingPrimary) {
		t.Errorf("Expected ErrMissingPrimary, got %v", err)
	}
	_, err := svc.Analyze(context.Background(), Request{
		Primary:     models.Track{Path: "/in/mix.wav"},
		Reference:   &models.Track{Path: "/in/ref.wav"},
		ReferenceID: "7d5f3c7e-0a7b-4f0e-9c59-2c1f1d7b8a11",
	})
	if !errors.Is(err, ErrConflictingReference) {
		t.Errorf("Expected ErrConflictingReference, got %v", err)
	}
}

func TestAnalyzeLoudnessUnavailableOmitsComparisons(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/mix.wav": {format: "wav", noLoudness: true},
		"/in/ref.wav": {format: "wav", integrated: -14, lra: 8, truePeak: -3},
	})}
	svc := newTestService(t, runner)

	res, err := svc.Analyze(context.Background(), Request{
		Primary:   models.Track{Path: "/in/mix.wav"},
		Reference: &models.Track{Path: "/in/ref.wav"},
		PresetID:  "podcast",
	})
	if err != nil {
		t.Fatalf("Loudness failure must not fail the request: %v", err)
	}
	if res.Primary.Loudness != nil {
		t.Errorf("Expected unavailable loudness, got %+v", res.Primary.Loudness)
	}
	if res.Comparison != nil {
		t.Error("Comparison must be omitted when primary loudness is unavailable")
	}
	if res.PresetComparison != nil {
		t.Error("Preset comparison must be omitted when primary loudness is unavailable")
	}
	if res.Preset != "podcast" {
		t.Errorf("Requested preset should still be echoed, got %q", res.Preset)
	}
	if len(res.Primary.Spectrum) != spectrum.BandCount {
		t.Error("Spectrum must still be measured")
	}
}

func TestAnalyzeFallbackRespectsProcessCap(t *testing.T) {
	runner := &audiotest.ScriptedRunner{
		Handler: fakeEngine(map[string]fakeTrack{
			"/in/mix.wav": {format: "wav", integrated: -9, untagged: true},
			"/in/ref.wav": {format: "wav", integrated: -11, untagged: true},
		}),
		Delay: 3 * time.Millisecond,
	}
	svc := newTestService(t, runner, WithMaxProcesses(3))

	res, err := svc.Analyze(context.Background(), Request{
		Primary:   models.Track{Path: "/in/mix.wav"},
		Reference: &models.Track{Path: "/in/ref.wav"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if peak := runner.Peak(); peak > 3 {
		t.Errorf("Observed %d concurrent processes, cap is 3", peak)
	}
	if n := runner.CallsWithLabel("band "); n != 2*spectrum.BandCount {
		t.Errorf("Expected %d per-band passes, got %d", 2*spectrum.BandCount, n)
	}
	for _, a := range []models.TrackAnalysis{res.Primary, *res.Reference} {
		for i, b := range a.Spectrum {
			if b.RMSDb != bandLevel(i) {
				t.Errorf("%s band %s: got %f want %f", a.Track.Name, b.Name, b.RMSDb, bandLevel(i))
			}
		}
	}

	stats := svc.Stats()
	if stats.Size != 3 || stats.Peak > 3 || stats.InFlight != 0 {
		t.Errorf("Unexpected pool stats: %+v", stats)
	}
	// 2 tracks x (metadata + loudness + single pass + 12 bands)
	if stats.Total != 2*(3+spectrum.BandCount) {
		t.Errorf("Expected %d engine calls, got %d", 2*(3+spectrum.BandCount), stats.Total)
	}
}

func TestAnalyzeCancelled(t *testing.T) {
	runner := &audiotest.ScriptedRunner{
		Handler: fakeEngine(map[string]fakeTrack{"/in/mix.wav": {format: "wav", integrated: -9}}),
		Delay:   time.Second,
	}
	svc := newTestService(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := svc.Analyze(ctx, Request{Primary: models.Track{Path: "/in/mix.wav"}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Cancellation did not stop the analysis promptly")
	}
}

func TestSavedReferenceComparison(t *testing.T) {
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/mix.wav": {format: "wav", integrated: -9, lra: 5, truePeak: -1},
		"/in/ref.wav": {format: "flac", integrated: -14, lra: 8, truePeak: -3},
	})}
	svc := newTestService(t, runner)
	ctx := context.Background()

	saved, err := svc.SaveReference(ctx, models.Track{Path: "/in/ref.wav"}, "Streaming master")
	if err != nil {
		t.Fatalf("SaveReference failed: %v", err)
	}
	if saved.Name != "Streaming master" || saved.Analysis.Metadata.Format != "flac" {
		t.Errorf("Unexpected saved reference: %+v", saved)
	}

	refs, err := svc.ListReferences()
	if err != nil || len(refs) != 1 {
		t.Fatalf("Expected one saved reference, got %d (%v)", len(refs), err)
	}

	res, err := svc.Analyze(ctx, Request{
		Primary:     models.Track{Path: "/in/mix.wav"},
		ReferenceID: saved.ID,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.ReferenceID != saved.ID {
		t.Errorf("Expected reference id %s, got %s", saved.ID, res.ReferenceID)
	}
	if res.Comparison == nil || math.Abs(res.Comparison.LoudnessDiff-5) > 0.1 {
		t.Errorf("Unexpected comparison against saved reference: %+v", res.Comparison)
	}
	if n := runner.CallsWithLabel("metadata"); n != 2 {
		t.Errorf("Saved reference must not be re-measured, saw %d metadata calls", n)
	}

	if err := svc.DeleteReference(saved.ID); err != nil {
		t.Fatalf("DeleteReference failed: %v", err)
	}
	_, err = svc.Analyze(ctx, Request{Primary: models.Track{Path: "/in/mix.wav"}, ReferenceID: saved.ID})
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("Expected ErrReferenceNotFound, got %v", err)
	}
}

func TestReferenceCountDoesNotCreateDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "refs.sqlite3")
	runner := &audiotest.ScriptedRunner{Handler: fakeEngine(map[string]fakeTrack{
		"/in/ref.wav": {format: "wav", integrated: -14, lra: 8, truePeak: -3},
	})}
	svc := newTestService(t, runner, WithDBPath(dbPath))

	n, err := svc.ReferenceCount()
	if err != nil || n != 0 {
		t.Fatalf("Expected 0 references, got %d (%v)", n, err)
	}
	if _, err := os.Stat(dbPath); !os.IsNotExist(err) {
		t.Fatalf("Counting must not create %s (stat: %v)", dbPath, err)
	}

	if _, err := svc.SaveReference(context.Background(), models.Track{Path: "/in/ref.wav"}, ""); err != nil {
		t.Fatalf("SaveReference failed: %v", err)
	}
	if n, err = svc.ReferenceCount(); err != nil || n != 1 {
		t.Errorf("Expected 1 reference, got %d (%v)", n, err)
	}
}

type stubFeedback struct {
	text string
	err  error
	seen *models.AnalysisResult
}

func (f *stubFeedback) Generate(_ context.Context, r *models.AnalysisResult) (string, error) {
	f.seen = r
	return f.text, f.err
}

func TestAnalyzeFeedback(t *testing.T) {
	tracks := map[string]fakeTrack{"/in/mix.wav": {format: "wav", integrated: -9}}

	ok := &stubFeedback{text: "Trim 2 dB around 250 Hz."}
	svc := newTestService(t, &audiotest.ScriptedRunner{Handler: fakeEngine(tracks)}, WithFeedback(ok))
	res, err := svc.Analyze(context.Background(), Request{Primary: models.Track{Path: "/in/mix.wav"}, PresetID: "edm"})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Feedback != ok.text {
		t.Errorf("Expected feedback %q, got %q", ok.text, res.Feedback)
	}
	if ok.seen == nil || ok.seen.PresetComparison == nil {
		t.Error("Feedback should see the finished comparisons")
	}

	failing := &stubFeedback{err: errors.New("upstream unavailable")}
	svc = newTestService(t, &audiotest.ScriptedRunner{Handler: fakeEngine(tracks)}, WithFeedback(failing))
	res, err = svc.Analyze(context.Background(), Request{Primary: models.Track{Path: "/in/mix.wav"}})
	if err != nil {
		t.Fatalf("Feedback failure must not fail the analysis: %v", err)
	}
	if res.Feedback != "" {
		t.Errorf("Expected empty feedback, got %q", res.Feedback)
	}
}

func TestStageUpload(t *testing.T) {
	tempDir := t.TempDir()
	svc := newTestService(t, &audiotest.ScriptedRunner{Handler: fakeEngine(nil)}, WithTempDir(tempDir))

	if _, err := svc.StageUpload("notes.txt", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for .txt, got %v", err)
	}

	track, err := svc.StageUpload("Final Mix.FLAC", strings.NewReader("fLaC"))
	if err != nil {
		t.Fatalf("StageUpload failed: %v", err)
	}
	if track.Name != "Final Mix.FLAC" || filepath.Dir(track.Path) != tempDir {
		t.Errorf("Unexpected staged track: %+v", track)
	}
	if _, err := os.Stat(track.Path); err != nil {
		t.Errorf("Staged file missing: %v", err)
	}
}

func TestPresets(t *testing.T) {
	svc := newTestService(t, &audiotest.ScriptedRunner{Handler: fakeEngine(nil)})
	presets := svc.Presets()
	if len(presets) != 6 {
		t.Fatalf("Expected 6 presets, got %d", len(presets))
	}
	if presets[0].ID != "pop" || presets[0].TargetLUFS != -9 {
		t.Errorf("Unexpected first preset: %+v", presets[0])
	}
}

func TestAnalyzeRealFiles(t *testing.T) {
	audiotest.RequireFFmpeg(t)

	tone := audiotest.ToneWAV(t, 1000, 0.5, 44100, 2, 3)
	svc, err := NewService(
		WithLogger(logger.Discard()),
		WithDBPath(filepath.Join(t.TempDir(), "refs.sqlite3")),
	)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	defer svc.Close()

	res, err := svc.Analyze(context.Background(), Request{
		Primary:  models.Track{Path: tone},
		PresetID: "acoustic",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if res.Primary.Metadata.SampleRate != 44100 || res.Primary.Metadata.Channels != 2 {
		t.Errorf("Unexpected metadata: %+v", res.Primary.Metadata)
	}
	if math.Abs(res.Primary.Metadata.DurationSec-3) > 0.05 {
		t.Errorf("Unexpected duration %f", res.Primary.Metadata.DurationSec)
	}
	if res.Primary.Loudness == nil || res.PresetComparison == nil {
		t.Fatal("Expected loudness and preset comparison for a steady tone")
	}
	if len(res.Primary.Spectrum) != spectrum.BandCount {
		t.Errorf("Expected %d bands, got %d", spectrum.BandCount, len(res.Primary.Spectrum))
	}

	if _, err := svc.AnalyzeTrack(context.Background(), models.Track{Path: filepath.Join(t.TempDir(), "missing.wav")}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat for a missing file, got %v", err)
	}
}
