package compare

import (
	"strings"

	"github.com/himanishpuri/SoundScope/pkg/models"
)

var presets = []models.PresetTarget{
	{ID: "pop", Name: "Pop / Top 40", Description: "Modern competitive master", TargetLUFS: -9, MaxTruePeak: -1},
	{ID: "edm", Name: "EDM / Dance", Description: "Loud and punchy club master", TargetLUFS: -7, MaxTruePeak: -1},
	{ID: "hiphop", Name: "Hip-Hop / Trap", Description: "Hard-hitting with strong low-end", TargetLUFS: -8, MaxTruePeak: -1},
	{ID: "rock", Name: "Rock / Indie", Description: "Dynamic with punch", TargetLUFS: -10, MaxTruePeak: -1},
	{ID: "acoustic", Name: "Acoustic / Jazz", Description: "Open dynamics, natural sound", TargetLUFS: -14, MaxTruePeak: -1},
	{ID: "podcast", Name: "Podcast / Voice", Description: "Clear speech, broadcast standard", TargetLUFS: -16, MaxTruePeak: -1},
}

// Presets returns a copy of the preset table in display order.
func Presets() []models.PresetTarget {
	return append([]models.PresetTarget(nil), presets...)
}

// LookupPreset finds a preset by id, ignoring case and surrounding space.
func LookupPreset(id string) (models.PresetTarget, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, p := range presets {
		if p.ID == id {
			return p, true
		}
	}
	return models.PresetTarget{}, false
}
