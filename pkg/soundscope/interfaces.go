package soundscope

import (
	"context"
	"io"

	"github.com/himanishpuri/SoundScope/pkg/models"
)

type Service interface {
	Analyze(ctx context.Context, req Request) (*models.AnalysisResult, error)
	AnalyzeTrack(ctx context.Context, track models.Track) (*models.TrackAnalysis, error)
	StageUpload(name string, r io.Reader) (models.Track, error)
	SaveReference(ctx context.Context, track models.Track, name string) (*models.SavedReference, error)
	GetReference(id string) (*models.SavedReference, error)
	ListReferences() ([]models.SavedReference, error)
	DeleteReference(id string) error
	ReferenceCount() (int64, error)
	Presets() []models.PresetTarget
	Stats() PoolStats
	Close() error
}

type Storage interface {
	SaveReference(name string, analysis models.TrackAnalysis) (*models.SavedReference, error)
	GetReference(id string) (*models.SavedReference, error)
	ListReferences() ([]models.SavedReference, error)
	DeleteReference(id string) error
	CountReferences() (int64, error)
	Close() error
}

// FeedbackGenerator turns a finished analysis into prose advice. Failures
// never fail the analysis.
type FeedbackGenerator interface {
	Generate(ctx context.Context, result *models.AnalysisResult) (string, error)
}
