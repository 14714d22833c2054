package heuristics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/jsonforge/jsontree"
)

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{name: "realistic name", value: "Alice Johnson", want: false},
		{name: "empty", value: "", want: false},
		{name: "blank", value: "   ", want: false},
		{name: "marker word", value: "Test user", want: true},
		{name: "marker word inside token", value: "contest winner", want: false},
		{name: "marker word prefix", value: "testing", want: false},
		{name: "password", value: "my password", want: true},
		{name: "russian marker", value: "Пример", want: true},
		{name: "lorem ipsum", value: "Lorem   ipsum dolor sit amet", want: true},
		{name: "john doe", value: "John Doe", want: true},
		{name: "jane doe spaced", value: "jane  doe", want: true},
		{name: "russian full name", value: "Иванов Иван Иванович", want: true},
		{name: "other full name", value: "Jane Smith", want: false},
		{name: "placeholder email", value: "admin@localhost", want: true},
		{name: "placeholder email org", value: "demo@test.org", want: true},
		{name: "real email", value: "a.smith@acme.io", want: false},
		{name: "phone 123-456", value: "123-456", want: true},
		{name: "phone 000 000", value: "000 000", want: true},
		{name: "phone 555-01xx", value: "555-0199", want: true},
		{name: "date", value: "2024-05-17", want: false},
		{name: "all same digits", value: "000", want: true},
		{name: "two same digits", value: "77", want: false},
		{name: "canonical run", value: "PIN 1234", want: true},
		{name: "ascending run", value: "0123", want: true},
		{name: "descending run", value: "ID 98765", want: true},
		{name: "short ascending run", value: "x123y", want: false},
		{name: "non monotonic", value: "1357", want: false},
		{name: "full-width canonical", value: "１２３４５６", want: true},
		{name: "decimal", value: "3.14", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceholder(tt.value), "value %q", tt.value)
		})
	}
}

func TestAnalyzePhone(t *testing.T) {
	a := NewAnalyzer()

	warnings, err := a.Analyze(`{"phone":"123-456"}`)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "$/phone")
	assert.Equal(t, "$/phone: suspicious placeholder-like value: '123-456'", warnings[0])

	sig, err := a.Signature(`{"phone":"123-456"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

func TestAnalyzePaths(t *testing.T) {
	doc := `{
		"b": "test",
		"a": "Alice",
		"user": {"phones": ["555-0199", "+1 415 867 2930"], "pin": 1111},
		"tags": [[null, "John Doe"]],
		"ok": true
	}`

	warnings, err := NewAnalyzer().Analyze(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"$/b: suspicious placeholder-like value: 'test'",
		"$/user/phones[0]: suspicious placeholder-like value: '555-0199'",
		"$/user/pin: suspicious placeholder-like value: '1111'",
		"$/tags[0][1]: suspicious placeholder-like value: 'John Doe'",
	}, warnings)
}

func TestAnalyzeRootScalar(t *testing.T) {
	warnings, err := NewAnalyzer().Analyze(`"dummy"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"$: suspicious placeholder-like value: 'dummy'"}, warnings)
}

func TestAnalyzeClean(t *testing.T) {
	a := NewAnalyzer()

	warnings, err := a.Analyze(`{"name":"Alice","age":31}`)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	sig, err := a.Signature(`{"name":"Alice","age":31}`)
	require.NoError(t, err)
	assert.Equal(t, "", sig)
}

func TestAnalyzeInvalidJSON(t *testing.T) {
	_, err := NewAnalyzer().Analyze(`{"phone":`)
	assert.ErrorIs(t, err, jsontree.ErrInvalidJSON)
}

func TestSignatureIgnoresMemberOrder(t *testing.T) {
	a := NewAnalyzer()
	first, err := a.Signature(`{"x":"test","y":"John Doe"}`)
	require.NoError(t, err)
	second, err := a.Signature(`{"y":"John Doe","x":"test"}`)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, `line\nnext\tcol`, Preview("line\nnext\tcol"))
	assert.Equal(t, "short", Preview("short"))

	long := strings.Repeat("a", 200)
	got := Preview(long)
	assert.Equal(t, strings.Repeat("a", 117)+"...", got)
	assert.Len(t, []rune(got), 120)

	exact := strings.Repeat("ж", 120)
	assert.Equal(t, exact, Preview(exact))
}
