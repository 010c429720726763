package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"
)

// PCM is decoded 16-bit audio with interleaved channels.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// wavHeader is the canonical 44-byte header written by EncodeWAV.
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

type fmtChunk struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// ReadWAVFile loads and decodes a WAV file from disk.
func ReadWAVFile(path string) (*PCM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return DecodeWAV(data)
}

// DecodeWAV decodes a RIFF/WAVE byte stream holding 16-bit PCM.
// Chunks other than "fmt " and "data" (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (*PCM, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return nil, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	var (
		format  *fmtChunk
		payload []byte
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if end > len(data) {
			// Streams written by ffmpeg to a pipe may carry a placeholder size.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, fmt.Errorf("invalid WAV file: fmt chunk too short")
			}
			var fc fmtChunk
			if err := binary.Read(bytes.NewReader(data[body:end]), binary.LittleEndian, &fc); err != nil {
				return nil, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			format = &fc
		case "data":
			payload = data[body:end]
		}

		offset = end + size%2
		if payload != nil && format != nil {
			break
		}
	}

	if format == nil {
		return nil, fmt.Errorf("invalid WAV file: missing fmt chunk")
	}
	if payload == nil {
		return nil, fmt.Errorf("invalid WAV file: missing data chunk")
	}
	if format.AudioFormat != 1 {
		return nil, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", format.AudioFormat)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", format.BitsPerSample)
	}
	if format.NumChannels == 0 || format.SampleRate == 0 {
		return nil, fmt.Errorf("invalid WAV file: %d channels at %d Hz", format.NumChannels, format.SampleRate)
	}

	samples := make([]int16, len(payload)/2)
	if err := binary.Read(bytes.NewReader(payload[:len(samples)*2]), binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to read audio samples: %w", err)
	}

	channels := int(format.NumChannels)
	// Drop a trailing partial frame.
	samples = samples[:len(samples)-len(samples)%channels]

	return &PCM{
		SampleRate: int(format.SampleRate),
		Channels:   channels,
		Samples:    samples,
	}, nil
}

// EncodeWAV encodes p as a canonical 16-bit PCM WAV file.
func EncodeWAV(p *PCM) ([]byte, error) {
	if p.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", p.SampleRate)
	}
	if p.Channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", p.Channels)
	}

	const bitsPerSample = 16
	channels := uint16(p.Channels)
	dataSize := uint32(len(p.Samples) * 2)

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   channels,
		SampleRate:    uint32(p.SampleRate),
		ByteRate:      uint32(p.SampleRate) * uint32(channels) * bitsPerSample / 8,
		BlockAlign:    channels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(p.Samples)*2))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if err := binary.Write(buf, binary.LittleEndian, p.Samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	return buf.Bytes(), nil
}

// Frames returns the number of sample frames (one sample per channel).
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playback length of p.
func (p *PCM) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(int64(p.Frames()) * int64(time.Second) / int64(p.SampleRate))
}

// Slice returns the audio between start and end. Bounds are clamped to the clip.
// The returned PCM shares sample storage with p.
func (p *PCM) Slice(start, end time.Duration) *PCM {
	from := p.frameAt(start)
	to := p.frameAt(end)
	if to < from {
		to = from
	}
	return &PCM{
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
		Samples:    p.Samples[from*p.Channels : to*p.Channels],
	}
}

func (p *PCM) frameAt(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	f := int(int64(d) * int64(p.SampleRate) / int64(time.Second))
	return min(f, p.Frames())
}
