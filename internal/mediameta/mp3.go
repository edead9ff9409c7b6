package mediameta

import (
	"bytes"
	"errors"
)

// MPEG-1 Layer III bitrate table, kbit/s. Index 0 is free-format, 15 invalid.
var mp3Bitrates = [16]int64{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

var mp3SampleRates = [4]int64{44100, 48000, 32000, 0}

func isMP3(data []byte) bool {
	offset := skipID3(data)
	return findFrameSync(data, offset) >= 0
}

// parseMP3 reads the first frame header and extrapolates duration from the
// audio byte count, which is exact for CBR files and an estimate for VBR.
func parseMP3(data []byte) (Metadata, error) {
	offset := skipID3(data)
	start := findFrameSync(data, offset)
	if start < 0 || start+4 > len(data) {
		return Metadata{}, errors.New("no frame sync")
	}

	header := data[start : start+4]
	version := header[1] >> 3 & 0x03
	layer := header[1] >> 1 & 0x03
	if version != 3 || layer != 1 {
		return Metadata{}, errors.New("unsupported MPEG version or layer")
	}

	bitrate := mp3Bitrates[header[2]>>4] * 1000
	sampleRate := mp3SampleRates[header[2]>>2&0x03]
	if bitrate == 0 || sampleRate == 0 {
		return Metadata{}, errors.New("invalid bitrate or sample rate index")
	}

	meta := Metadata{
		ContainerFormat: "mp3",
		Codec:           "mp3",
		BitrateBps:      bitrate,
		SampleRateHz:    sampleRate,
	}
	audioBytes := len(data) - start
	meta.DurationSeconds = float64(audioBytes) * 8 / float64(bitrate)
	return meta, nil
}

func skipID3(data []byte) int {
	if len(data) < 10 || !bytes.Equal(data[0:3], []byte("ID3")) {
		return 0
	}
	// Syncsafe 28-bit size, excluding the 10-byte header.
	size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
	end := 10 + size
	if end > len(data) {
		return len(data)
	}
	return end
}

func findFrameSync(data []byte, offset int) int {
	for i := offset; i+1 < len(data) && i < offset+4096; i++ {
		if data[i] == 0xff && data[i+1]&0xe0 == 0xe0 {
			return i
		}
	}
	return -1
}
