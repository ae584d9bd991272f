package pcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WrapAsWAV prepends a canonical 44-byte PCM WAV header to raw s16le
// samples. Every producer of synthetic or downmixed audio in this module
// uses this instead of hand-rolling its own header.
func WrapAsWAV(pcm []byte, sampleRate, channels, bits int) []byte {
	var buf bytes.Buffer
	byteRate := sampleRate * channels * bits / 8
	blockAlign := channels * bits / 8
	dataSize := uint32(len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&buf, binary.LittleEndian, uint16(bits))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes()
}

// WAVInfo describes a parsed canonical WAV file's format and raw sample
// bytes.
type WAVInfo struct {
	SampleRate int
	Channels   int
	Bits       int
	Data       []byte
}

// ReadWAV parses a little-endian RIFF/WAVE file produced by ffmpeg or
// WrapAsWAV, walking its chunks rather than assuming a fixed 44-byte
// header so an extended fmt chunk (as some encoders emit) still parses.
func ReadWAV(raw []byte) (WAVInfo, error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return WAVInfo{}, fmt.Errorf("pcm: not a RIFF/WAVE file")
	}
	var info WAVInfo
	pos := 12
	for pos+8 <= len(raw) {
		id := string(raw[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(raw[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(raw) {
			size = len(raw) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return WAVInfo{}, fmt.Errorf("pcm: fmt chunk too short")
			}
			info.Channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			info.Bits = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
		case "data":
			info.Data = raw[body : body+size]
		}
		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	if info.Data == nil {
		return WAVInfo{}, fmt.Errorf("pcm: no data chunk found")
	}
	if info.SampleRate == 0 {
		return WAVInfo{}, fmt.Errorf("pcm: no fmt chunk found")
	}
	return info, nil
}
