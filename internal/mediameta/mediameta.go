package mediameta

import (
	"errors"
	"fmt"
)

// ErrUnparsableMedia indicates the bytes do not match any supported audio
// container, or the container headers are too damaged to read.
var ErrUnparsableMedia = errors.New("unparsable media")

// Metadata holds fields decoded from an asset's container headers. Fields the
// container does not declare stay at their zero values.
type Metadata struct {
	ContainerFormat string
	Codec           string
	DurationSeconds float64
	BitrateBps      int64
	SampleRateHz    int64
}

type prober struct {
	name  string
	probe func([]byte) bool
	parse func([]byte) (Metadata, error)
}

var probers = []prober{
	{name: "wav", probe: isWAV, parse: parseWAV},
	{name: "flac", probe: isFLAC, parse: parseFLAC},
	{name: "ogg", probe: isOgg, parse: parseOgg},
	{name: "m4a", probe: isMP4, parse: parseMP4},
	{name: "mp3", probe: isMP3, parse: parseMP3},
}

// Parse inspects the asset bytes and returns decoded metadata. It never
// blocks and never reaches outside the given buffer.
func Parse(data []byte) (Metadata, error) {
	if len(data) < 12 {
		return Metadata{}, fmt.Errorf("%w: %d bytes is too short for any header", ErrUnparsableMedia, len(data))
	}
	for _, p := range probers {
		if !p.probe(data) {
			continue
		}
		meta, err := p.parse(data)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: %s: %s", ErrUnparsableMedia, p.name, err)
		}
		return meta, nil
	}
	return Metadata{}, fmt.Errorf("%w: unrecognized container signature", ErrUnparsableMedia)
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func le16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func be64(b []byte) uint64 {
	return uint64(be32(b))<<32 | uint64(be32(b[4:]))
}
