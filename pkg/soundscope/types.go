package soundscope

import "github.com/himanishpuri/SoundScope/pkg/models"

// Request describes one analysis. Reference and ReferenceID are mutually
// exclusive; both may be empty.
type Request struct {
	Primary     models.Track
	Reference   *models.Track // Uploaded reference track, measured alongside Primary
	ReferenceID string        // Saved reference to compare against
	PresetID    string        // Genre preset id, see Presets
}

// PoolStats reports engine process usage since the service started.
type PoolStats struct {
	Size     int `json:"size"`
	InFlight int `json:"inFlight"`
	Peak     int `json:"peak"`
	Total    int `json:"total"`
}
