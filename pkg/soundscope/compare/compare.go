// Package compare computes loudness differences between two tracks, or
// between a track and a genre preset.
package compare

import "github.com/himanishpuri/SoundScope/pkg/models"

// Tracks returns a minus b. It returns nil unless both measurements are
// present.
func Tracks(a, b *models.LoudnessMeasurement) *models.ComparisonResult {
	if a == nil || b == nil {
		return nil
	}
	return &models.ComparisonResult{
		LoudnessDiff: a.Integrated - b.Integrated,
		RangeDiff:    a.Range - b.Range,
		PeakDiff:     a.TruePeak - b.TruePeak,
	}
}

// Preset returns m minus the preset target. It returns nil when m is nil.
func Preset(m *models.LoudnessMeasurement, target models.PresetTarget) *models.PresetComparison {
	if m == nil {
		return nil
	}
	return &models.PresetComparison{
		Preset:         target.ID,
		TargetLUFS:     target.TargetLUFS,
		TargetTruePeak: target.MaxTruePeak,
		LoudnessDiff:   m.Integrated - target.TargetLUFS,
		TruePeakDiff:   m.TruePeak - target.MaxTruePeak,
	}
}
