package mediameta

import (
	"bytes"
	"errors"
)

func isWAV(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE"))
}

// parseWAV walks RIFF chunks for fmt and data. Byte rate gives bitrate, and
// the data chunk length divided by byte rate gives duration.
func parseWAV(data []byte) (Metadata, error) {
	meta := Metadata{ContainerFormat: "wav", Codec: "pcm"}

	var byteRate uint32
	var dataSize uint32
	var haveFmt, haveData bool

	offset := 12
	for offset+8 <= len(data) {
		chunkID := data[offset : offset+4]
		chunkSize := le32(data[offset+4 : offset+8])
		body := offset + 8

		switch {
		case bytes.Equal(chunkID, []byte("fmt ")):
			if body+16 > len(data) {
				return Metadata{}, errors.New("truncated fmt chunk")
			}
			format := le16(data[body : body+2])
			if format != 1 && format != 3 {
				meta.Codec = "non-pcm"
			}
			meta.SampleRateHz = int64(le32(data[body+4 : body+8]))
			byteRate = le32(data[body+8 : body+12])
			haveFmt = true
		case bytes.Equal(chunkID, []byte("data")):
			dataSize = chunkSize
			haveData = true
		}

		// Chunks are word aligned.
		offset = body + int(chunkSize)
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if !haveFmt {
		return Metadata{}, errors.New("missing fmt chunk")
	}
	if byteRate > 0 {
		meta.BitrateBps = int64(byteRate) * 8
		if haveData {
			meta.DurationSeconds = float64(dataSize) / float64(byteRate)
		}
	}
	return meta, nil
}
