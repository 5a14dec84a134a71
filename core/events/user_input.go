package events

const (
	// KindUserTranscriptSegment identifies finalized continuous answer fragments.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the transcript of a single recognition.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindRecognitionFailed identifies a cancelled or unrecognized capture.
	KindRecognitionFailed Kind = "user_input.recognition_failed"
)

// UserTranscriptSegment carries one finalized fragment.
type UserTranscriptSegment struct {
	Base
	Segment string `json:"segment"`
}

// NewUserTranscriptSegment creates a transcript segment event.
func NewUserTranscriptSegment(segment string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment}
}

// UserTranscriptFinal carries a complete single-shot transcript.
type UserTranscriptFinal struct {
	Base
	Transcript string `json:"transcript"`
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// RecognitionFailed carries why a capture produced no usable speech.
type RecognitionFailed struct {
	Base
	Reason string `json:"reason"`
}

// NewRecognitionFailed creates a recognition failed event.
func NewRecognitionFailed(reason string) RecognitionFailed {
	return RecognitionFailed{Base: NewBase(KindRecognitionFailed), Reason: reason}
}
