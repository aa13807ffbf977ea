package models

import "time"

// SentinelDb is the floor assigned to a spectral band that could not be
// measured, and the lowest level any band can report.
const SentinelDb = -100.0

// Track identifies one audio source on disk.
type Track struct {
	Path string // Local path handed to the engine
	Name string // Display name, usually the original upload filename
}

// Metadata holds container-level facts read without decoding samples.
type Metadata struct {
	DurationSec float64 `json:"duration"`
	SampleRate  int     `json:"sampleRate"`
	BitDepth    int     `json:"bitDepth,omitempty"` // 0 when the container does not declare one
	Channels    int     `json:"channels"`
	Format      string  `json:"format"`
}

// LoudnessMeasurement is an EBU R128 summary. It is always handled through a
// pointer; nil means the measurement is unavailable.
type LoudnessMeasurement struct {
	Integrated float64 `json:"integrated"` // LUFS
	Range      float64 `json:"range"`      // LU
	TruePeak   float64 `json:"truePeak"`   // dBTP
}

// FrequencyBand is one entry of the fixed band table paired with a measured
// RMS level.
type FrequencyBand struct {
	Name   string  `json:"name"`
	LowHz  float64 `json:"lowHz"`
	HighHz float64 `json:"highHz"`
	RMSDb  float64 `json:"rmsDb"`
}

// SpectralProfile is index-aligned with the band table and always holds
// exactly one entry per band.
type SpectralProfile []FrequencyBand

// PresetTarget is a genre loudness target.
type PresetTarget struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	TargetLUFS  float64 `json:"targetLufs"`
	MaxTruePeak float64 `json:"maxTruePeak"`
}

// ComparisonResult is the difference primary minus reference.
type ComparisonResult struct {
	LoudnessDiff float64 `json:"loudnessDiff"`
	RangeDiff    float64 `json:"rangeDiff"`
	PeakDiff     float64 `json:"peakDiff"`
}

// PresetComparison is the difference primary minus preset target.
type PresetComparison struct {
	Preset         string  `json:"preset"`
	TargetLUFS     float64 `json:"targetLufs"`
	TargetTruePeak float64 `json:"targetTruePeak"`
	LoudnessDiff   float64 `json:"loudnessDiff"`
	TruePeakDiff   float64 `json:"truePeakDiff"`
}

// TrackAnalysis is everything measured for one track.
type TrackAnalysis struct {
	Track    Track                `json:"-"`
	Metadata Metadata             `json:"metadata"`
	Loudness *LoudnessMeasurement `json:"loudness,omitempty"`
	Spectrum SpectralProfile      `json:"frequencies"`
}

// AnalysisResult is the outcome of one analysis request.
type AnalysisResult struct {
	Primary          TrackAnalysis     `json:"userMix"`
	Reference        *TrackAnalysis    `json:"reference,omitempty"`
	ReferenceID      string            `json:"referenceId,omitempty"`
	Comparison       *ComparisonResult `json:"comparison,omitempty"`
	PresetComparison *PresetComparison `json:"presetComparison,omitempty"`
	Preset           string            `json:"preset,omitempty"`
	Feedback         string            `json:"aiFeedback,omitempty"`
}

// SavedReference is a stored reference-track analysis.
type SavedReference struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Analysis  TrackAnalysis `json:"analysis"`
	CreatedAt time.Time     `json:"createdAt"`
}
