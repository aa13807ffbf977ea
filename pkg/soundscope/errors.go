package soundscope

import (
	"errors"

	"github.com/himanishpuri/SoundScope/pkg/soundscope/audio"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/loudness"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/spectrum"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/storage"
)

// Errors returned by the service. Only ErrUnsupportedFormat, the request
// validation errors and ErrReferenceNotFound fail an Analyze call; the rest
// are logged while the affected measurement degrades.
var (
	ErrUnsupportedFormat   = audio.ErrUnsupportedFormat
	ErrLoudnessUnavailable = loudness.ErrLoudnessUnavailable
	ErrBandUnavailable     = spectrum.ErrBandUnavailable
	ErrEngineSpawn         = engine.ErrEngineSpawn
	ErrTimeout             = engine.ErrTimeout
	ErrReferenceNotFound   = storage.ErrNotFound

	ErrUnknownPreset        = errors.New("unknown preset")
	ErrMissingPrimary       = errors.New("primary track is required")
	ErrConflictingReference = errors.New("reference track and saved reference id are mutually exclusive")
)
