package main

import (
	"math"
	"time"

	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope"
)

// Upload limits for POST /api/analyze
const (
	MaxUploadBytes = 200 << 20
	MaxMemoryBytes = 32 << 20
)

// Display scale used by relativeLevels.
const (
	displayFloorDb = -60.0
	displayCeilDb  = 0.0
)

// AnalyzeResponse is the response for POST /api/analyze. The embedded result
// carries raw dB values; RelativeLevels is a 0-100 rendering of the same
// bands for bar charts.
type AnalyzeResponse struct {
	*models.AnalysisResult
	RelativeLevels RelativeLevelsDTO `json:"relativeLevels"`
}

type RelativeLevelsDTO struct {
	UserMix   []float64 `json:"userMix"`
	Reference []float64 `json:"reference,omitempty"`
}

// relativeLevels maps each band's RMS level linearly from the display floor
// (0) to full scale (100). Sentinel bands land on 0.
func relativeLevels(profile models.SpectralProfile) []float64 {
	out := make([]float64, len(profile))
	for i, b := range profile {
		v := (b.RMSDb - displayFloorDb) / (displayCeilDb - displayFloorDb) * 100
		out[i] = math.Round(math.Max(0, math.Min(100, v))*10) / 10
	}
	return out
}

func newAnalyzeResponse(res *models.AnalysisResult) AnalyzeResponse {
	resp := AnalyzeResponse{
		AnalysisResult: res,
		RelativeLevels: RelativeLevelsDTO{UserMix: relativeLevels(res.Primary.Spectrum)},
	}
	if res.Reference != nil {
		resp.RelativeLevels.Reference = relativeLevels(res.Reference.Spectrum)
	}
	return resp
}

// PresetsResponse is the response for GET /api/presets
type PresetsResponse struct {
	Presets []models.PresetTarget `json:"presets"`
	Count   int                   `json:"count"`
}

// ReferenceDTO represents a saved reference in API responses
type ReferenceDTO struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	CreatedAt time.Time            `json:"createdAt"`
	Analysis  models.TrackAnalysis `json:"analysis"`
}

func toReferenceDTO(ref models.SavedReference) ReferenceDTO {
	return ReferenceDTO{
		ID:        ref.ID,
		Name:      ref.Name,
		CreatedAt: ref.CreatedAt,
		Analysis:  ref.Analysis,
	}
}

// ListReferencesResponse is the response for GET /api/references
type ListReferencesResponse struct {
	References []ReferenceDTO `json:"references"`
	Count      int            `json:"count"`
}

// DeleteReferenceResponse is the response for DELETE /api/references/{id}
type DeleteReferenceResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// MetricsResponse provides server health and engine pool metrics
type MetricsResponse struct {
	Status         string               `json:"status"`
	DatabasePath   string               `json:"database_path"`
	ReferenceCount int64                `json:"reference_count"`
	Pool           soundscope.PoolStats `json:"pool"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
