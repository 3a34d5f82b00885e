package server

import (
	"bytes"
	"encoding/binary"
	"math"
)

// The dev server has no TTS; replies carry a short generated beep so the
// client's decode/playback path stays exercised end to end.

const (
	beepSampleRate = 8000
	beepFrequency  = 440.0
	beepDuration   = 0.2 // seconds
)

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// beepWAV renders the stand-in reply audio as mono PCM-16 WAV bytes.
func beepWAV() []byte {
	sampleCount := int(beepSampleRate * beepDuration)
	samples := make([]int16, sampleCount)
	for i := range samples {
		phase := 2 * math.Pi * beepFrequency * float64(i) / beepSampleRate
		samples[i] = int16(math.Sin(phase) * math.MaxInt16 * 0.3)
	}

	dataSize := uint32(len(samples) * 2)
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1,
		SampleRate:    beepSampleRate,
		ByteRate:      beepSampleRate * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(samples)*2))
	binary.Write(buf, binary.LittleEndian, header)
	binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}
