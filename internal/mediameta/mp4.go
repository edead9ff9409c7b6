package mediameta

import (
	"bytes"
	"errors"
)

func isMP4(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp"))
}

// parseMP4 locates the movie header box, which declares a timescale and a
// duration in timescale units. The moov box usually sits near the start or
// the end of the file, so the whole buffer is scanned.
func parseMP4(data []byte) (Metadata, error) {
	mvhd := bytes.Index(data, []byte("mvhd"))
	if mvhd < 0 {
		return Metadata{}, errors.New("missing mvhd box")
	}
	body := mvhd + 4
	if body+4 > len(data) {
		return Metadata{}, errors.New("truncated mvhd box")
	}

	meta := Metadata{ContainerFormat: "m4a", Codec: "aac"}
	version := data[body]

	var timescale uint32
	var duration uint64
	switch version {
	case 0:
		// version+flags, creation, modification: 12 bytes before timescale.
		if body+20 > len(data) {
			return Metadata{}, errors.New("truncated mvhd v0")
		}
		timescale = be32(data[body+12 : body+16])
		duration = uint64(be32(data[body+16 : body+20]))
	case 1:
		if body+32 > len(data) {
			return Metadata{}, errors.New("truncated mvhd v1")
		}
		timescale = be32(data[body+20 : body+24])
		duration = be64(data[body+24 : body+32])
	default:
		return Metadata{}, errors.New("unknown mvhd version")
	}

	if timescale == 0 {
		return Metadata{}, errors.New("zero timescale")
	}
	meta.DurationSeconds = float64(duration) / float64(timescale)
	if alac := bytes.Index(data, []byte("alac")); alac >= 0 {
		meta.Codec = "alac"
	}
	if meta.DurationSeconds > 0 {
		meta.BitrateBps = int64(float64(len(data)) * 8 / meta.DurationSeconds)
	}
	if rate, ok := mp4SampleRate(data); ok {
		meta.SampleRateHz = rate
	}
	return meta, nil
}

// mp4SampleRate reads the mdhd timescale, which for audio-only files equals
// the sample rate.
func mp4SampleRate(data []byte) (int64, bool) {
	mdhd := bytes.Index(data, []byte("mdhd"))
	if mdhd < 0 {
		return 0, false
	}
	body := mdhd + 4
	if body+4 > len(data) {
		return 0, false
	}
	switch data[body] {
	case 0:
		if body+16 > len(data) {
			return 0, false
		}
		return int64(be32(data[body+12 : body+16])), true
	case 1:
		if body+24 > len(data) {
			return 0, false
		}
		return int64(be32(data[body+20 : body+24])), true
	}
	return 0, false
}
