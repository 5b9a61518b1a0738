package recording

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BitDepth used when writing recordings. Raw sensor counts do not fit in
// 16-bit PCM.
const BitDepth = 32

var (
	ErrInvalidWAV        = errors.New("invalid WAV file")
	ErrChannelOutOfRange = errors.New("channel out of range")
)

// Info describes a recording on disk.
type Info struct {
	Filename   string
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// Recording is one channel of a decoded PPG recording.
type Recording struct {
	Samples    []float64
	SampleRate int
	Channel    int
}

// Duration returns the signal length.
func (r *Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(r.Samples)) * time.Second / time.Duration(r.SampleRate)
}

func openDecoder(path string) (*wav.Decoder, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, ErrInvalidWAV)
	}
	return decoder, f, nil
}

// Probe reads the header of a WAV recording.
func Probe(path string) (*Info, error) {
	decoder, f, err := openDecoder(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	duration, err := decoder.Duration()
	if err != nil {
		return nil, fmt.Errorf("reading duration: %w", err)
	}

	return &Info{
		Filename:   filepath.Base(path),
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
		Duration:   duration,
	}, nil
}

// ReadWAV decodes one channel of a PCM WAV recording. Sample values are the
// integer PCM values as stored, not normalised: the detector only cares
// about relative amplitude.
func ReadWAV(path string, channel int) (*Recording, error) {
	decoder, f, err := openDecoder(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numChans := int(decoder.NumChans)
	if channel < 0 || channel >= numChans {
		return nil, fmt.Errorf("%w: channel %d, recording has %d channel(s)", ErrChannelOutOfRange, channel, numChans)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding PCM samples: %w", err)
	}

	frames := len(buf.Data) / numChans
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		samples[i] = float64(buf.Data[i*numChans+channel])
	}

	return &Recording{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channel:    channel,
	}, nil
}

// WriteWAV stores samples as a mono 32-bit PCM recording, rounding each
// value to the nearest integer.
func WriteWAV(path string, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(s))
	}

	enc := wav.NewEncoder(f, sampleRate, BitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("writing samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalising WAV: %w", err)
	}
	return nil
}
