package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	tests := []struct {
		name  string
		input IRValue
		want  string
	}{
		{"null", IRNull{}, `null`},
		{"string", IRString("Active"), `"Active"`},
		{"int", IRInt(-42), `-42`},
		{"bool", IRBool(true), `true`},
		{"empty array", IRArray{}, `[]`},
		{"nested", IRObject{"b": IRArray{IRString("x"), IRNull{}}, "a": IRBool(false)}, `{"a":false,"b":["x",null]}`},
		{"no html escaping", IRString("<a&b>"), `"<a&b>"`},
		{"line separator literal", IRString("a\u2028b"), "\"a\u2028b\""},
		{"control characters", IRString("tab\there\x01"), `"tab\there\u0001"`},
		{"quote and backslash", IRString(`say "hi" \o/`), `"say \"hi\" \\o/"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to the precomposed form.
	decomposed, err := MarshalCanonical(IRString("caf\u0065\u0301"))
	require.NoError(t, err)
	composed, err := MarshalCanonical(IRString("caf\u00e9"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+FF61 sorts before U+10000 in UTF-8 but after it in UTF-16.
	obj := IRObject{"\U00010000": IRNull{}, "\uff61": IRNull{}, "a": IRNull{}}
	assert.Equal(t, []string{"a", "\U00010000", "\uff61"}, obj.SortedKeys())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRNull{}, IRNull{}))
	assert.True(t, Equal(IRString("x"), IRString("x")))
	assert.False(t, Equal(IRString("true"), IRBool(true)))
	assert.True(t, Equal(IRArray{IRString("a")}, Strings([]string{"a"})))
	assert.False(t, Equal(IRArray{IRString("a")}, IRArray{IRString("a"), IRString("b")}))
	assert.True(t, Equal(IRObject{"k": IRBool(true)}, IRObject{"k": IRBool(true)}))
	assert.False(t, Equal(IRObject{"k": IRBool(true)}, IRObject{"j": IRBool(true)}))
}
