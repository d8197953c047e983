// Package homework turns homework-review API payloads into chat messages.
//
// The API answers with {"homeworks": [{"homework_name": ..., "status": ...}]}.
// Validate checks the envelope; Render turns one record into the text that is
// sent to the chat. Both are pure and never log.
package homework

import "fmt"

const (
	KeyHomeworks = "homeworks"
	KeyName      = "homework_name"
	KeyStatus    = "status"
)

const (
	StatusApproved  = "approved"
	StatusReviewing = "reviewing"
	StatusRejected  = "rejected"
)

var verdicts = map[string]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}

// Verdict returns the sentence for a status code.
func Verdict(status string) (string, bool) {
	v, ok := verdicts[status]
	return v, ok
}

// Render builds the notification text for a single record.
func Render(record any) (string, error) {
	m, ok := record.(map[string]any)
	if !ok {
		return "", &TypeMismatchError{Field: "homework", Want: "object", Got: jsonKind(record)}
	}

	name, err := stringField(m, KeyName)
	if err != nil {
		return "", err
	}
	status, err := stringField(m, KeyStatus)
	if err != nil {
		return "", err
	}

	verdict, ok := Verdict(status)
	if !ok {
		return "", &UnknownStatusError{Status: status}
	}
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", name, verdict), nil
}

func stringField(m map[string]any, key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", &MissingKeyError{Key: key}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &TypeMismatchError{Field: key, Want: "string", Got: jsonKind(raw)}
	}
	return s, nil
}
