package homework

import (
	"errors"
	"testing"
)

func TestValidateReturnsRecordsUnchanged(t *testing.T) {
	t.Parallel()
	recs := []any{
		map[string]any{KeyName: "a", KeyStatus: StatusApproved},
		"not validated here",
	}
	got, err := Validate(map[string]any{KeyHomeworks: recs, "current_date": 1.0})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if len(got) != 2 || got[1] != "not validated here" {
		t.Fatalf("unexpected records: %v", got)
	}
}

func TestValidateEmpty(t *testing.T) {
	t.Parallel()
	got, err := Validate(map[string]any{KeyHomeworks: []any{}})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		resp    any
		missing bool
		field   string
	}{
		{name: "list top level", resp: []any{}, field: "response"},
		{name: "nil", resp: nil, field: "response"},
		{name: "string", resp: "Ошибка в ответе API", field: "response"},
		{name: "no homeworks", resp: map[string]any{"current_date": 1.0}, missing: true},
		{name: "homeworks object", resp: map[string]any{KeyHomeworks: map[string]any{}}, field: KeyHomeworks},
		{name: "homeworks null", resp: map[string]any{KeyHomeworks: nil}, field: KeyHomeworks},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.resp)
			if tt.missing {
				var mk *MissingKeyError
				if !errors.As(err, &mk) || mk.Key != KeyHomeworks {
					t.Fatalf("expected MissingKeyError(homeworks), got %v", err)
				}
				return
			}
			var tm *TypeMismatchError
			if !errors.As(err, &tm) {
				t.Fatalf("expected TypeMismatchError, got %v", err)
			}
			if tm.Field != tt.field {
				t.Fatalf("Field = %q, want %q", tm.Field, tt.field)
			}
		})
	}
}
