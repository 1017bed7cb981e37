package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// DecodeWAV decodes a RIFF/WAVE payload into a mono buffer, downmixing
// multi-channel audio by averaging channels.
func DecodeWAV(data []byte) (*Buffer, error) {
	return decodeWAV(bytes.NewReader(data))
}

// ReadWAVFile decodes a WAV file from disk
func ReadWAVFile(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeWAV(f)
}

func decodeWAV(r io.ReadSeeker) (*Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("decode wav: invalid file")
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if pcm == nil || pcm.Format == nil || len(pcm.Data) == 0 {
		return nil, ErrEmptyPayload
	}

	channels := pcm.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	if len(pcm.Data)%channels != 0 {
		return nil, ErrMisalignedPayload
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))

	frames := len(pcm.Data) / channels
	out := NewBuffer(pcm.Format.SampleRate, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(pcm.Data[i*channels+ch]) / scale
		}
		out.Samples[i] = sum / float64(channels)
	}
	return out, nil
}

// EncodeWAV writes the buffer as 16-bit mono PCM
func EncodeWAV(w io.WriteSeeker, b *Buffer) error {
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: b.SampleRate},
		Data:           make([]int, len(b.Samples)),
		SourceBitDepth: 16,
	}
	for i, s := range b.Samples {
		buf.Data[i] = toInt16(s)
	}

	enc := wav.NewEncoder(w, b.SampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteWAVFile encodes the buffer to path, replacing any existing file
func WriteWAVFile(path string, b *Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func toInt16(s float64) int {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	v := int(math.Round(s * 32767))
	return v
}
