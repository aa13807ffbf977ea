package soundscope

import (
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/storage"
)

// storageAdapter adapts the storage.DBClient to implement the Storage interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteStorage creates a new SQLite storage backend.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) SaveReference(name string, analysis models.TrackAnalysis) (*models.SavedReference, error) {
	ref, err := s.db.SaveReference(name, analysis)
	if err != nil {
		return nil, err
	}
	saved := toSavedReference(*ref)
	// The stored row drops the local path; keep it for the caller.
	saved.Analysis.Track = analysis.Track
	return &saved, nil
}

func (s *storageAdapter) GetReference(id string) (*models.SavedReference, error) {
	ref, err := s.db.GetReference(id)
	if err != nil {
		return nil, err
	}
	saved := toSavedReference(*ref)
	return &saved, nil
}

func (s *storageAdapter) ListReferences() ([]models.SavedReference, error) {
	refs, err := s.db.ListReferences()
	if err != nil {
		return nil, err
	}
	out := make([]models.SavedReference, len(refs))
	for i, ref := range refs {
		out[i] = toSavedReference(ref)
	}
	return out, nil
}

func (s *storageAdapter) DeleteReference(id string) error {
	return s.db.DeleteReference(id)
}

func (s *storageAdapter) CountReferences() (int64, error) {
	return s.db.CountReferences()
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}

func toSavedReference(ref storage.Reference) models.SavedReference {
	analysis := ref.Analysis
	if analysis.Track.Name == "" {
		analysis.Track.Name = ref.Name
	}
	return models.SavedReference{
		ID:        ref.ID,
		Name:      ref.Name,
		Analysis:  analysis,
		CreatedAt: ref.CreatedAt,
	}
}
