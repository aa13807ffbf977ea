// Package soundscope measures audio files with ffmpeg and compares them
// against a reference track or a genre loudness preset.
package soundscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/audio"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/compare"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/loudness"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/spectrum"
	"github.com/himanishpuri/SoundScope/pkg/utils"
)

// soundService is the default implementation of the Service interface.
type soundService struct {
	config   *Config
	log      *logger.Logger
	pool     *engine.Pool
	metadata *audio.Extractor
	loudness *loudness.Analyzer
	spectrum *spectrum.Analyzer
	feedback FeedbackGenerator

	mu      sync.Mutex
	storage Storage
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.MaxProcesses < 1 {
		cfg.MaxProcesses = engine.DefaultPoolSize()
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = engine.DefaultTimeout
	}
	if cfg.Runner == nil {
		cfg.Runner = engine.NewExecRunner(cfg.ProcessTimeout)
	}
	if cfg.DBPath == "" && cfg.Storage == nil {
		return nil, fmt.Errorf("either a database path or a storage backend is required")
	}

	log := cfg.Logger.Named("soundscope")
	pool := engine.NewPool(cfg.Runner, cfg.MaxProcesses)

	return &soundService{
		config:   cfg,
		log:      log,
		pool:     pool,
		metadata: audio.NewExtractor(pool, cfg.FFprobePath, log.Named("metadata")),
		loudness: loudness.NewAnalyzer(pool, cfg.FFmpegPath, log.Named("loudness")),
		spectrum: spectrum.NewAnalyzer(pool, cfg.FFmpegPath, log.Named("spectrum")),
		feedback: cfg.Feedback,
		storage:  cfg.Storage,
	}, nil
}

// Analyze measures the primary track and, when given, an uploaded reference
// track concurrently, then derives the comparisons. Request validation and
// the saved-reference lookup happen before any process is started.
func (s *soundService) Analyze(ctx context.Context, req Request) (*models.AnalysisResult, error) {
	if req.Primary.Path == "" {
		return nil, ErrMissingPrimary
	}
	if req.Reference != nil && req.ReferenceID != "" {
		return nil, ErrConflictingReference
	}

	var target *models.PresetTarget
	if req.PresetID != "" {
		if p, ok := compare.LookupPreset(req.PresetID); ok {
			target = &p
		} else {
			s.log.Warnf("Ignoring %v %q", ErrUnknownPreset, req.PresetID)
		}
	}

	var saved *models.SavedReference
	if req.ReferenceID != "" {
		ref, err := s.GetReference(req.ReferenceID)
		if err != nil {
			return nil, err
		}
		saved = ref
	}

	tracks := []models.Track{req.Primary}
	if req.Reference != nil {
		tracks = append(tracks, *req.Reference)
	}
	s.log.Infof("Analyzing %d track(s), preset=%q, saved reference=%q", len(tracks), req.PresetID, req.ReferenceID)

	analyses, err := s.analyzeTracks(ctx, tracks)
	if err != nil {
		return nil, err
	}

	result := &models.AnalysisResult{Primary: *analyses[0]}
	switch {
	case req.Reference != nil:
		result.Reference = analyses[1]
	case saved != nil:
		ref := saved.Analysis
		result.Reference = &ref
		result.ReferenceID = saved.ID
	}

	if result.Reference != nil {
		result.Comparison = compare.Tracks(result.Primary.Loudness, result.Reference.Loudness)
		if result.Comparison == nil {
			s.log.Warnf("Skipping track comparison: loudness unavailable")
		}
	}
	if target != nil {
		result.Preset = target.ID
		result.PresetComparison = compare.Preset(result.Primary.Loudness, *target)
		if result.PresetComparison == nil {
			s.log.Warnf("Skipping %s preset comparison: loudness unavailable", target.ID)
		}
	}

	if s.feedback != nil {
		text, err := s.feedback.Generate(ctx, result)
		if err != nil {
			s.log.Warnf("Feedback generation failed: %v", err)
		} else {
			result.Feedback = text
		}
	}

	return result, nil
}

// AnalyzeTrack measures a single track.
func (s *soundService) AnalyzeTrack(ctx context.Context, track models.Track) (*models.TrackAnalysis, error) {
	if track.Path == "" {
		return nil, ErrMissingPrimary
	}
	analyses, err := s.analyzeTracks(ctx, []models.Track{track})
	if err != nil {
		return nil, err
	}
	return analyses[0], nil
}

// analyzeTracks measures every track at once. Loudness runs alongside
// metadata; the spectrum follows metadata because its filter edges depend on
// the sample rate. Only a metadata failure is fatal; it cancels the group,
// which kills the remaining engine processes. Each goroutine writes its own
// fields.
func (s *soundService) analyzeTracks(ctx context.Context, tracks []models.Track) ([]*models.TrackAnalysis, error) {
	analyses := make([]*models.TrackAnalysis, len(tracks))
	g, gctx := errgroup.WithContext(ctx)

	for i, track := range tracks {
		track := track
		if track.Name == "" {
			track.Name = filepath.Base(track.Path)
		}
		a := &models.TrackAnalysis{Track: track}
		analyses[i] = a

		g.Go(func() error {
			meta, err := s.metadata.Extract(gctx, track.Path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", track.Name, err)
			}
			a.Metadata = *meta
			a.Spectrum = s.spectrum.Measure(gctx, track.Path, meta.SampleRate)
			return nil
		})
		g.Go(func() error {
			a.Loudness = s.loudness.Measure(gctx, track.Path)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Errorf("Analysis failed: %v", err)
		return nil, err
	}

	for _, a := range analyses {
		if a.Loudness == nil {
			s.log.Warnf("%s: %v", a.Track.Name, ErrLoudnessUnavailable)
		}
	}
	return analyses, nil
}

// StageUpload copies an uploaded file into the temp directory. The caller
// removes the returned path when done.
func (s *soundService) StageUpload(name string, r io.Reader) (models.Track, error) {
	if !utils.HasAllowedExtension(name) {
		return models.Track{}, fmt.Errorf("%w: %s (allowed: %v)", ErrUnsupportedFormat, name, utils.AllowedAudioExtensions)
	}
	path, err := utils.SaveToTemp(s.config.TempDir, name, r)
	if err != nil {
		return models.Track{}, err
	}
	return models.Track{Path: path, Name: filepath.Base(name)}, nil
}

// SaveReference analyses track and stores the result for later comparisons.
func (s *soundService) SaveReference(ctx context.Context, track models.Track, name string) (*models.SavedReference, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	analysis, err := s.AnalyzeTrack(ctx, track)
	if err != nil {
		return nil, err
	}
	saved, err := store.SaveReference(name, *analysis)
	if err != nil {
		return nil, fmt.Errorf("failed to save reference: %w", err)
	}
	s.log.Infof("Saved reference %s (%s)", saved.ID, saved.Name)
	return saved, nil
}

func (s *soundService) GetReference(id string) (*models.SavedReference, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	return store.GetReference(id)
}

func (s *soundService) ListReferences() ([]models.SavedReference, error) {
	store, err := s.store()
	if err != nil {
		return nil, err
	}
	return store.ListReferences()
}

func (s *soundService) DeleteReference(id string) error {
	store, err := s.store()
	if err != nil {
		return err
	}
	return store.DeleteReference(id)
}

// ReferenceCount counts saved references without creating the database: it
// is zero while no database file exists yet.
func (s *soundService) ReferenceCount() (int64, error) {
	s.mu.Lock()
	opened := s.storage != nil
	s.mu.Unlock()
	if !opened {
		if _, err := os.Stat(s.config.DBPath); errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
	}
	store, err := s.store()
	if err != nil {
		return 0, err
	}
	return store.CountReferences()
}

// Presets returns the genre loudness targets.
func (s *soundService) Presets() []models.PresetTarget {
	return compare.Presets()
}

func (s *soundService) Stats() PoolStats {
	return PoolStats{
		Size:     s.pool.Size(),
		InFlight: s.pool.InFlight(),
		Peak:     s.pool.Peak(),
		Total:    s.pool.Total(),
	}
}

// Close releases all resources held by the service.
func (s *soundService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storage == nil {
		return nil
	}
	err := s.storage.Close()
	s.storage = nil
	return err
}

// store opens the reference database on first use, so analyses that never
// touch saved references do not create it.
func (s *soundService) store() (Storage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storage != nil {
		return s.storage, nil
	}
	st, err := NewSQLiteStorage(s.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}
	s.storage = st
	return st, nil
}
