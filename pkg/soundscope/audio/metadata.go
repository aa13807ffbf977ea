package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	goaiff "github.com/go-audio/aiff"
	"github.com/go-audio/wav"

	"github.com/himanishpuri/SoundScope/pkg/logger"
	"github.com/himanishpuri/SoundScope/pkg/models"
	"github.com/himanishpuri/SoundScope/pkg/soundscope/engine"
)

// ErrUnsupportedFormat means no container could be identified in the file.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type ffprobeOutput struct {
	Format struct {
		Filename string `json:"filename"`
		Duration string `json:"duration"`
		Format   string `json:"format_name"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType        string `json:"codec_type"`
	SampleRate       string `json:"sample_rate"`
	Channels         int    `json:"channels"`
	BitsPerSample    int    `json:"bits_per_sample"`
	BitsPerRawSample string `json:"bits_per_raw_sample"`
	Duration         string `json:"duration"`
}

func (p *ffprobeOutput) firstAudioStream() *ffprobeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "audio" {
			return &p.Streams[i]
		}
	}
	return nil
}

// Extractor reads container metadata with ffprobe and falls back to reading
// WAV and AIFF headers directly when ffprobe is unusable.
type Extractor struct {
	Runner      engine.Runner
	FFprobePath string
	Log         *logger.Logger
}

// NewExtractor returns an Extractor using runner to launch ffprobePath.
func NewExtractor(runner engine.Runner, ffprobePath string, log *logger.Logger) *Extractor {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Extractor{Runner: runner, FFprobePath: ffprobePath, Log: log}
}

// Extract returns the metadata of the file at path or ErrUnsupportedFormat.
func (e *Extractor) Extract(ctx context.Context, path string) (*models.Metadata, error) {
	out, err := e.Runner.Run(ctx, engine.Invocation{
		Binary: e.FFprobePath,
		Args: []string{
			"-v", "quiet",
			"-print_format", "json",
			"-show_format",
			"-show_streams",
			path,
		},
		Label: "metadata",
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err == nil {
		meta, perr := ParseFFprobe([]byte(out.Stdout))
		if perr == nil {
			return meta, nil
		}
		err = perr
	}

	if errors.Is(err, engine.ErrTimeout) {
		e.Log.Warnf("ffprobe timed out on %s", path)
	}
	e.Log.Debugf("ffprobe unusable for %s (%v), reading headers directly", path, err)
	meta, herr := ReadHeader(path)
	if herr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}
	return meta, nil
}

// ParseFFprobe decodes `ffprobe -print_format json -show_format -show_streams`
// output.
func ParseFFprobe(data []byte) (*models.Metadata, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding ffprobe json: %w", err)
	}

	stream := probe.firstAudioStream()
	if stream == nil {
		return nil, errors.New("no audio stream found")
	}

	duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	if duration == 0 {
		duration, _ = strconv.ParseFloat(stream.Duration, 64)
	}
	sampleRate, _ := strconv.Atoi(stream.SampleRate)

	bitDepth := stream.BitsPerSample
	if bitDepth == 0 && stream.BitsPerRawSample != "" {
		bitDepth, _ = strconv.Atoi(stream.BitsPerRawSample)
	}

	format := probe.Format.Format
	if format == "" {
		format = "unknown"
	}

	return &models.Metadata{
		DurationSec: duration,
		SampleRate:  sampleRate,
		BitDepth:    bitDepth,
		Channels:    stream.Channels,
		Format:      format,
	}, nil
}

// ReadHeader reads WAV or AIFF headers without decoding samples.
func ReadHeader(path string) (*models.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	wd := wav.NewDecoder(f)
	if wd.IsValidFile() {
		wd.ReadInfo()
		format := wd.Format()
		if format == nil || format.SampleRate == 0 {
			return nil, errors.New("wav header incomplete")
		}
		duration, err := wd.Duration()
		if err != nil {
			return nil, fmt.Errorf("wav duration: %w", err)
		}
		return &models.Metadata{
			DurationSec: duration.Seconds(),
			SampleRate:  format.SampleRate,
			BitDepth:    int(wd.BitDepth),
			Channels:    format.NumChannels,
			Format:      "wav",
		}, nil
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	ad := goaiff.NewDecoder(f)
	if ad.IsValidFile() {
		ad.ReadInfo()
		format := ad.Format()
		if format == nil || format.SampleRate == 0 {
			return nil, errors.New("aiff header incomplete")
		}
		duration, err := ad.Duration()
		if err != nil {
			return nil, fmt.Errorf("aiff duration: %w", err)
		}
		return &models.Metadata{
			DurationSec: duration.Seconds(),
			SampleRate:  format.SampleRate,
			BitDepth:    int(ad.BitDepth),
			Channels:    format.NumChannels,
			Format:      "aiff",
		}, nil
	}

	return nil, fmt.Errorf("unrecognised container in %s", path)
}
