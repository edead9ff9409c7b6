package mediameta

import (
	"bytes"
	"errors"
)

// opusGranuleRate is the fixed 48 kHz granule clock every Opus stream uses,
// independent of the input sample rate recorded in its header.
const opusGranuleRate = 48000

func isOgg(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[0:4], []byte("OggS"))
}

// parseOgg handles Ogg Vorbis and Ogg Opus: the identification header on the
// first page declares the codec parameters, and the granule position on the
// last page counts total samples at the stream's granule rate.
func parseOgg(data []byte) (Metadata, error) {
	if ident := bytes.Index(data, []byte("\x01vorbis")); ident >= 0 {
		return parseOggVorbis(data, ident)
	}
	if ident := bytes.Index(data, []byte("OpusHead")); ident >= 0 {
		return parseOggOpus(data, ident)
	}
	return Metadata{}, errors.New("unrecognized identification header")
}

func parseOggVorbis(data []byte, ident int) (Metadata, error) {
	if ident+28 > len(data) {
		return Metadata{}, errors.New("truncated vorbis identification header")
	}

	sampleRate := le32(data[ident+12 : ident+16])
	nominalBitrate := int32(le32(data[ident+20 : ident+24]))
	if sampleRate == 0 {
		return Metadata{}, errors.New("zero sample rate")
	}

	meta := Metadata{
		ContainerFormat: "ogg",
		Codec:           "vorbis",
		SampleRateHz:    int64(sampleRate),
	}
	if nominalBitrate > 0 {
		meta.BitrateBps = int64(nominalBitrate)
	}
	if granule, ok := lastGranulePosition(data); ok && granule > 0 {
		meta.DurationSeconds = float64(granule) / float64(sampleRate)
		if meta.BitrateBps == 0 {
			meta.BitrateBps = int64(float64(len(data)) * 8 / meta.DurationSeconds)
		}
	}
	return meta, nil
}

func parseOggOpus(data []byte, ident int) (Metadata, error) {
	if ident+19 > len(data) {
		return Metadata{}, errors.New("truncated opus identification header")
	}

	preSkip := uint64(le16(data[ident+10 : ident+12]))
	sampleRate := le32(data[ident+12 : ident+16])
	if sampleRate == 0 {
		// The header may record the input rate as unknown.
		sampleRate = opusGranuleRate
	}

	meta := Metadata{
		ContainerFormat: "ogg",
		Codec:           "opus",
		SampleRateHz:    int64(sampleRate),
	}
	if granule, ok := lastGranulePosition(data); ok && granule > preSkip {
		meta.DurationSeconds = float64(granule-preSkip) / opusGranuleRate
		meta.BitrateBps = int64(float64(len(data)) * 8 / meta.DurationSeconds)
	}
	return meta, nil
}

func lastGranulePosition(data []byte) (uint64, bool) {
	last := bytes.LastIndex(data, []byte("OggS"))
	if last < 0 || last+14 > len(data) {
		return 0, false
	}
	b := data[last+6 : last+14]
	granule := uint64(le32(b)) | uint64(le32(b[4:]))<<32
	return granule, true
}
