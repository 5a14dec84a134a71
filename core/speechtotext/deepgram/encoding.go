package deepgram

import (
	"fmt"
	"slices"

	"github.com/koscakluka/voiceforms/core/audio"
)

// streamEncoding is the sample rate and encoding name sent as query
// parameters when the listen socket is opened.
type streamEncoding struct {
	SampleRate int
	Format     string
}

// Companded telephony formats are only accepted at 8 kHz.
var supportedRates = map[audio.Format][]int{
	audio.EncodingLinear16: {8000, 16000, 24000, 32000, 48000},
	audio.EncodingALaw:     {8000},
	audio.EncodingMulaw:    {8000},
}

func convertEncoding(info audio.EncodingInfo) (streamEncoding, error) {
	rates, ok := supportedRates[info.Format]
	if !ok {
		return streamEncoding{}, fmt.Errorf("unsupported encoding %q", info.Format)
	}
	if !slices.Contains(rates, info.SampleRate) {
		return streamEncoding{}, fmt.Errorf("unsupported sample rate %d for %s", info.SampleRate, info.Format)
	}
	return streamEncoding{SampleRate: info.SampleRate, Format: info.Format.Name()}, nil
}
