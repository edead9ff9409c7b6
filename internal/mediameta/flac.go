package mediameta

import (
	"bytes"
	"errors"
)

func isFLAC(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[0:4], []byte("fLaC"))
}

// parseFLAC reads the mandatory STREAMINFO block that immediately follows the
// stream marker: sample rate is 20 bits, total samples 36 bits.
func parseFLAC(data []byte) (Metadata, error) {
	// Marker + block header + 34-byte STREAMINFO body.
	if len(data) < 4+4+34 {
		return Metadata{}, errors.New("truncated STREAMINFO")
	}
	if data[4]&0x7f != 0 {
		return Metadata{}, errors.New("first block is not STREAMINFO")
	}

	body := data[8:]
	sampleRate := uint32(body[10])<<12 | uint32(body[11])<<4 | uint32(body[12])>>4
	totalSamples := uint64(body[13]&0x0f)<<32 | uint64(be32(body[14:18]))

	meta := Metadata{
		ContainerFormat: "flac",
		Codec:           "flac",
		SampleRateHz:    int64(sampleRate),
	}
	if sampleRate == 0 {
		return Metadata{}, errors.New("zero sample rate")
	}
	if totalSamples > 0 {
		meta.DurationSeconds = float64(totalSamples) / float64(sampleRate)
		meta.BitrateBps = int64(float64(len(data)) * 8 / meta.DurationSeconds)
	}
	return meta, nil
}
