// Package wav wraps raw PCM samples in a RIFF/WAVE container. The header
// layout is the bit-exact boundary with the transcription provider: a fixed
// 44-byte preamble with little-endian integer fields.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the fixed size of the RIFF/WAVE preamble in bytes.
const HeaderSize = 44

// Format describes the PCM samples being wrapped.
type Format struct {
	SampleRate    uint32
	NumChannels   uint16
	BitsPerSample uint16
}

// DefaultFormat matches the telephony provider's media stream: 8 kHz,
// mono, 16-bit.
var DefaultFormat = Format{
	SampleRate:    8000,
	NumChannels:   1,
	BitsPerSample: 16,
}

// Encode wraps raw PCM data in a WAV container.
func Encode(data []byte, f Format) ([]byte, error) {
	if f.SampleRate == 0 || f.NumChannels == 0 || f.BitsPerSample == 0 {
		return nil, fmt.Errorf("invalid wav format %+v", f)
	}

	buf := bytes.NewBuffer(make([]byte, 0, HeaderSize+len(data)))

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(data)))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(buf, binary.LittleEndian, uint16(1))  // PCM audio format
	binary.Write(buf, binary.LittleEndian, f.NumChannels)
	binary.Write(buf, binary.LittleEndian, f.SampleRate)

	byteRate := f.SampleRate * uint32(f.NumChannels) * uint32(f.BitsPerSample) / 8
	binary.Write(buf, binary.LittleEndian, byteRate)

	blockAlign := f.NumChannels * f.BitsPerSample / 8
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, f.BitsPerSample)

	// data chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	return buf.Bytes(), nil
}

// Header holds the fields decoded from a WAV preamble.
type Header struct {
	Format   Format
	DataSize uint32
}

// ParseHeader decodes the 44-byte preamble of a WAV container.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("wav header too short: %d bytes", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		return Header{}, fmt.Errorf("unexpected chunk layout")
	}

	return Header{
		Format: Format{
			NumChannels:   binary.LittleEndian.Uint16(b[22:24]),
			SampleRate:    binary.LittleEndian.Uint32(b[24:28]),
			BitsPerSample: binary.LittleEndian.Uint16(b[34:36]),
		},
		DataSize: binary.LittleEndian.Uint32(b[40:44]),
	}, nil
}
