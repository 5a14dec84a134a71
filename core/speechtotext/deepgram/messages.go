package deepgram

import (
	"encoding/json"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
)

var closeStreamType = string(api.TypeCloseStreamResponse)

type controlMessage struct {
	Type string `json:"type"`
}

func (s *stream) processMessage(msg []byte) {
	var parsedMsg controlMessage
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		logger.Warn("failed to unmarshal deepgram message", "error", err)
		return
	}

	switch api.TypeResponse(parsedMsg.Type) {
	case api.TypeMessageResponse:
		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram results", "error", err)
			return
		}

		transcript := ""
		if len(msgResp.Channel.Alternatives) > 0 {
			transcript = strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
		}

		if msgResp.IsFinal {
			if len(transcript) > 0 {
				s.accumulatedTranscript += " " + transcript
				if s.options.FragmentCallback != nil {
					s.options.FragmentCallback(transcript)
				}
			}
			if msgResp.SpeechFinal {
				s.onSpeechEnded()
			}
		} else if len(transcript) > 0 && s.options.InterimCallback != nil {
			s.options.InterimCallback(strings.TrimSpace(s.accumulatedTranscript + " " + transcript))
		}

	case api.TypeUtteranceEndResponse:
		if s.unendedSegment {
			s.onSpeechEnded()
		}

	case api.TypeSpeechStartedResponse:
		s.unendedSegment = true
		if s.onSpeechStarted != nil {
			s.onSpeechStarted()
		}
		if s.options.SpeechStartedCallback != nil {
			s.options.SpeechStartedCallback()
		}
	}
}

func (s *stream) onSpeechEnded() {
	s.unendedSegment = false
	utterance := strings.TrimSpace(s.accumulatedTranscript)
	s.accumulatedTranscript = ""
	if len(utterance) > 0 && s.onUtterance != nil {
		s.onUtterance(utterance)
	}
	if s.options.SpeechEndedCallback != nil {
		s.options.SpeechEndedCallback()
	}
}
