package homework

// Validate checks the decoded API response and returns its homework records
// unchanged. Element-level checks are left to Render.
//
// An empty sequence is valid.
func Validate(resp any) ([]any, error) {
	m, ok := resp.(map[string]any)
	if !ok {
		return nil, &TypeMismatchError{Field: "response", Want: "object", Got: jsonKind(resp)}
	}
	raw, ok := m[KeyHomeworks]
	if !ok {
		return nil, &MissingKeyError{Key: KeyHomeworks}
	}
	records, ok := raw.([]any)
	if !ok {
		return nil, &TypeMismatchError{Field: KeyHomeworks, Want: "array", Got: jsonKind(raw)}
	}
	return records, nil
}
