// Package events defines the typed dialogue event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - dialogue.*
//   - question.*
//   - user_input.*
//   - assistant_speech.*
//   - view.*
//
// dialogue events
//
//   - StateChanged (dialogue.state_changed): the controller moved between
//     states; carries both state names.
//   - IntentStarted (dialogue.intent_started): a session was seeded for an
//     intent.
//   - IntentCompleted (dialogue.intent_completed): the action for an intent
//     settled; carries the spoken outcome.
//
// question events
//
//   - QuestionAsked (question.asked): a question prompt is about to be played.
//   - AnswerRecorded (question.answer_recorded): a spoken answer was stored.
//   - AnswerPrefilled (question.answer_prefilled): an answer was taken from
//     local storage and the question skipped.
//
// user_input events
//
//   - UserTranscriptSegment (user_input.transcript_segment): finalized,
//     append-only fragment of a continuous answer.
//   - UserTranscriptFinal (user_input.transcript_final): terminal transcript of
//     a single-shot recognition.
//   - RecognitionFailed (user_input.recognition_failed): speech was cancelled
//     or could not be recognized.
//
// assistant_speech events
//
//   - MessageSpoken (assistant_speech.message_spoken): an outcome or error
//     message was spoken to the user.
//
// view events
//
//   - ViewChanged (view.changed): the pre/post login view should toggle.
package events
