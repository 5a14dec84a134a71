package actions

import (
	"strings"

	"github.com/koscakluka/voiceforms/core/catalog"
)

const tokenField = "token"

// Project builds the request body from the intent's question keys. Missing
// answers become empty strings and list fields are always present.
func Project(intent catalog.Intent, answers map[string]string) map[string]any {
	payload := make(map[string]any, len(intent.Questions)+1)
	lists := make(map[string][]string, len(intent.ListFields))
	for _, field := range intent.ListFields {
		lists[field.Field] = []string{}
	}

	for _, question := range intent.Questions {
		answer := answers[question.Key]
		if field, ok := intent.ListFieldFor(question.Key); ok {
			lists[field.Field] = append(lists[field.Field], answer)
			continue
		}
		payload[question.Key] = answer
	}

	for field, values := range lists {
		payload[field] = values
	}
	return payload
}

// NormalizePhone drops the periods speech recognizers add to spoken numbers.
func NormalizePhone(phone string) string {
	return strings.TrimSpace(strings.ReplaceAll(phone, ".", ""))
}
