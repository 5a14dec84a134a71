package events

const (
	KindQuestionAsked   Kind = "question.asked"
	KindAnswerRecorded  Kind = "question.answer_recorded"
	KindAnswerPrefilled Kind = "question.answer_prefilled"
)

type QuestionAsked struct {
	Base
	Intent string `json:"intent"`
	Index  int    `json:"index"`
	Key    string `json:"key"`
	Prompt string `json:"prompt"`
}

func NewQuestionAsked(intent string, index int, key, prompt string) QuestionAsked {
	return QuestionAsked{Base: NewBase(KindQuestionAsked), Intent: intent, Index: index, Key: key, Prompt: prompt}
}

type AnswerRecorded struct {
	Base
	Key    string `json:"key"`
	Answer string `json:"answer"`
}

func NewAnswerRecorded(key, answer string) AnswerRecorded {
	return AnswerRecorded{Base: NewBase(KindAnswerRecorded), Key: key, Answer: answer}
}

// AnswerPrefilled carries an answer read from local storage under Source.
type AnswerPrefilled struct {
	Base
	Key    string `json:"key"`
	Source string `json:"source"`
	Answer string `json:"answer"`
}

func NewAnswerPrefilled(key, source, answer string) AnswerPrefilled {
	return AnswerPrefilled{Base: NewBase(KindAnswerPrefilled), Key: key, Source: source, Answer: answer}
}
