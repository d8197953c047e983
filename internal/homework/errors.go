package homework

import "fmt"

// MissingKeyError reports a required key absent from a response or record.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing required key %q", e.Key)
}

// TypeMismatchError reports a value whose JSON type is not the expected one.
type TypeMismatchError struct {
	Field string
	Want  string
	Got   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Field, e.Want, e.Got)
}

// UnknownStatusError reports a status code that has no verdict.
type UnknownStatusError struct {
	Status string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("unknown homework status %q", e.Status)
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, int, int64:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
