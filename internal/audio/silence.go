// Package audio analyzes RIFF/WAVE files for the silence gate. The data
// chunk is streamed in fixed-size buffers, so analysis cost stays flat no
// matter how large the upload is.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// IsSilentWAV reports whether the file's audio is near-silent: RMS at or
// below thresholdDBFS and peak at or below thresholdDBFS+6.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, SilenceMetrics{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	metrics, err := Analyze(f)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	if metrics.Samples == 0 {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

// Analyze walks the RIFF chunks of r and measures RMS and peak levels over
// the data chunk.
func Analyze(r io.ReadSeeker) (SilenceMetrics, error) {
	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return SilenceMetrics{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
		}
		return SilenceMetrics{}, fmt.Errorf("read wav header: %w", err)
	}

	if string(header[:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return SilenceMetrics{}, ErrInvalidWAV
	}

	var (
		sampleFormat format
		hasFmt       bool
		levels       meter
		hasData      bool
	)

	for {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return SilenceMetrics{}, fmt.Errorf("read wav chunk header: %w", err)
		}

		chunkID := string(chunkHeader[:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))
		padded := chunkSize
		if chunkSize%2 != 0 {
			padded++
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return SilenceMetrics{}, ErrInvalidWAV
			}

			buf := make([]byte, 16)
			if _, err := io.ReadFull(r, buf); err != nil {
				return SilenceMetrics{}, fmt.Errorf("read wav fmt chunk: %w", err)
			}
			sampleFormat.audioFormat = binary.LittleEndian.Uint16(buf[0:2])
			sampleFormat.bitsPerSample = binary.LittleEndian.Uint16(buf[14:16])
			if err := sampleFormat.validate(); err != nil {
				return SilenceMetrics{}, err
			}
			hasFmt = true

			if _, err := r.Seek(padded-16, io.SeekCurrent); err != nil {
				return SilenceMetrics{}, fmt.Errorf("seek wav fmt padding: %w", err)
			}
		case "data":
			// fmt precedes data in any well-formed file; without it the
			// sample width is unknown.
			if !hasFmt {
				return SilenceMetrics{}, ErrInvalidWAV
			}

			if err := levels.consume(io.LimitReader(r, chunkSize), sampleFormat); err != nil {
				return SilenceMetrics{}, err
			}
			hasData = true

			if padded != chunkSize {
				if _, err := r.Seek(1, io.SeekCurrent); err != nil {
					return SilenceMetrics{}, fmt.Errorf("seek wav data padding: %w", err)
				}
			}
		default:
			if _, err := r.Seek(padded, io.SeekCurrent); err != nil {
				return SilenceMetrics{}, fmt.Errorf("seek wav chunk %s: %w", chunkID, err)
			}
		}
	}

	if !hasFmt || !hasData {
		return SilenceMetrics{}, ErrInvalidWAV
	}

	return levels.metrics(), nil
}

type format struct {
	audioFormat   uint16
	bitsPerSample uint16
}

func (f format) validate() error {
	switch f.audioFormat {
	case 1: // integer PCM
		switch f.bitsPerSample {
		case 8, 16, 24, 32:
			return nil
		}
	case 3: // IEEE float
		switch f.bitsPerSample {
		case 32, 64:
			return nil
		}
	}
	return ErrUnsupportedWAV
}

// meter accumulates peak and sum-of-squares over streamed sample data.
type meter struct {
	peak       float64
	sumSquares float64
	samples    int64
}

func (m *meter) consume(r io.Reader, f format) error {
	bytesPerSample := int(f.bitsPerSample / 8)
	if bytesPerSample <= 0 {
		return ErrUnsupportedWAV
	}

	// Buffer size is a multiple of every supported sample width.
	buf := make([]byte, 24*1024)
	leftover := 0

	for {
		n, err := r.Read(buf[leftover:])
		n += leftover
		complete := n - n%bytesPerSample

		for i := 0; i+bytesPerSample <= complete; i += bytesPerSample {
			value, decodeErr := decodeSample(buf[i:i+bytesPerSample], f)
			if decodeErr != nil {
				return decodeErr
			}

			abs := math.Abs(value)
			if abs > m.peak {
				m.peak = abs
			}
			m.sumSquares += value * value
			m.samples++
		}

		leftover = copy(buf, buf[complete:n])

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read wav data: %w", err)
		}
	}
}

func (m *meter) metrics() SilenceMetrics {
	if m.samples == 0 {
		return SilenceMetrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	rms := math.Sqrt(m.sumSquares / float64(m.samples))
	return SilenceMetrics{
		RMSdBFS:  amplitudeToDBFS(rms),
		PeakdBFS: amplitudeToDBFS(m.peak),
		Samples:  m.samples,
	}
}

func decodeSample(sample []byte, f format) (float64, error) {
	if f.audioFormat == 3 {
		switch f.bitsPerSample {
		case 32:
			bits := binary.LittleEndian.Uint32(sample)
			return float64(math.Float32frombits(bits)), nil
		case 64:
			bits := binary.LittleEndian.Uint64(sample)
			return math.Float64frombits(bits), nil
		default:
			return 0, ErrUnsupportedWAV
		}
	}

	switch f.bitsPerSample {
	case 8:
		u := float64(sample[0])
		return (u - 128.0) / 128.0, nil
	case 16:
		v := int16(binary.LittleEndian.Uint16(sample))
		return float64(v) / 32768.0, nil
	case 24:
		v := int32(sample[0]) | int32(sample[1])<<8 | int32(sample[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / 8388608.0, nil
	case 32:
		v := int32(binary.LittleEndian.Uint32(sample))
		return float64(v) / 2147483648.0, nil
	default:
		return 0, ErrUnsupportedWAV
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
