package modules

import (
	"reflect"
	"testing"
)

func TestSubstituteTemplate(t *testing.T) {
	vars := map[string]string{
		"keyword": "hello world",
		"page":    "2",
		"empty":   "",
	}

	cases := []struct {
		name  string
		value string
		want  string
	}{
		{"plain variable", "search?w={{keyword}}", "search?w=hello world"},
		{"multiple variables", "{{keyword}}-{{page}}", "hello world-2"},
		{"default used when var missing", "{{limit || 30}}", "30"},
		{"default ignored when var set", "{{page || 1}}", "2"},
		{"default used when var empty", "{{empty || fallback}}", "fallback"},
		{"unknown without default left verbatim", "{{mystery}}", "{{mystery}}"},
		{"no templates", "static", "static"},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			got := substituteTemplate(testCase.value, vars)
			if got != testCase.want {
				t.Fatalf("got %q, want %q", got, testCase.want)
			}
		})
	}
}

func TestSubstituteAnyWalksNestedStructures(t *testing.T) {
	vars := map[string]string{"id": "12345"}

	input := map[string]any{
		"ids":  []any{"{{id}}", "static"},
		"page": float64(1),
		"inner": map[string]any{
			"song": "{{id}}",
		},
	}

	got := substituteAny(input, vars)

	want := map[string]any{
		"ids":  []any{"12345", "static"},
		"page": float64(1),
		"inner": map[string]any{
			"song": "12345",
		},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
