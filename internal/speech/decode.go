package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/eugenenazirov/announcer/internal/venue"
)

const wavFormatPCM = 1

type wavInfo struct {
	channels      int
	sampleRate    int
	bitsPerSample int
	data          []byte
}

// decodePCM converts encoded audio into 16-bit little-endian stereo PCM at SampleRate.
func decodePCM(audio []byte, format string) ([]byte, error) {
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	switch format {
	case venue.FormatWAV:
		info, err := parseWAV(audio)
		if err != nil {
			return nil, err
		}
		if info.bitsPerSample != 16 {
			return nil, fmt.Errorf("unsupported wav sample size %d bits", info.bitsPerSample)
		}
		if info.sampleRate != SampleRate {
			return nil, fmt.Errorf("unsupported wav sample rate %d", info.sampleRate)
		}
		switch info.channels {
		case 1:
			return upmixStereo(info.data), nil
		case 2:
			return info.data, nil
		default:
			return nil, fmt.Errorf("unsupported wav channel count %d", info.channels)
		}
	case venue.FormatMP3:
		dec, err := mp3.NewDecoder(bytes.NewReader(audio))
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
		if dec.SampleRate() != SampleRate {
			return nil, fmt.Errorf("unsupported mp3 sample rate %d", dec.SampleRate())
		}
		pcm, err := io.ReadAll(dec)
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
		return pcm, nil
	default:
		return nil, fmt.Errorf("unsupported audio format %q", format)
	}
}

// parseWAV walks the RIFF chunks and returns the fmt fields and the data chunk.
func parseWAV(wav []byte) (wavInfo, error) {
	if len(wav) < 44 {
		return wavInfo{}, errors.New("wav data too short")
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return wavInfo{}, errors.New("not a valid WAV file")
	}

	var (
		info    wavInfo
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		start := pos + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || start+16 > len(wav) {
				return wavInfo{}, errors.New("wav fmt chunk truncated")
			}
			if binary.LittleEndian.Uint16(wav[start:]) != wavFormatPCM {
				return wavInfo{}, errors.New("wav is not PCM encoded")
			}
			info.channels = int(binary.LittleEndian.Uint16(wav[start+2:]))
			info.sampleRate = int(binary.LittleEndian.Uint32(wav[start+4:]))
			info.bitsPerSample = int(binary.LittleEndian.Uint16(wav[start+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return wavInfo{}, errors.New("wav data chunk precedes fmt chunk")
			}
			end := start + chunkSize
			// streamed responses may carry a placeholder size
			if end > len(wav) || chunkSize == 0 {
				end = len(wav)
			}
			info.data = wav[start:end]
			return info, nil
		}

		pos = start + chunkSize
		// Chunks are word-aligned.
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return wavInfo{}, errors.New("data chunk not found in WAV")
}

// upmixStereo duplicates each 16-bit mono sample into both channels.
func upmixStereo(mono []byte) []byte {
	frames := len(mono) / 2
	out := make([]byte, frames*4)
	for i := 0; i < frames; i++ {
		s := mono[i*2 : i*2+2]
		copy(out[i*4:], s)
		copy(out[i*4+2:], s)
	}
	return out
}
