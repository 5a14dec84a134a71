// Package audio describes the raw audio exchanged between capture devices,
// speech services and playback devices.
package audio

import "fmt"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = EncodingLinear16
)

// GetDefaultEncodingInfo returns mono 16 kHz linear PCM, the format every
// bundled device and speech client agrees on.
func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

// BytesPerSecond is the byte rate of a mono stream in this encoding.
func (e EncodingInfo) BytesPerSecond() int {
	return e.SampleRate * e.Format.ByteSize()
}

func (e EncodingInfo) String() string {
	return fmt.Sprintf("%s@%dHz", e.Format, e.SampleRate)
}

type Format string

func (f Format) Name() string { return string(f) }

func (f Format) ByteSize() int {
	switch f {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    Format = "mulaw"
	EncodingALaw     Format = "alaw"
	EncodingLinear16 Format = "linear16"
)
