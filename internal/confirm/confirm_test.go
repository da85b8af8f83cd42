package confirm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		input    string
		required Token
		want     bool
	}{
		{"YES", TokenYes, true},
		{"yes", TokenYes, false},
		{"Yes", TokenYes, false},
		{" YES", TokenYes, false},
		{"YES\n", TokenYes, true},
		{"DELETE", TokenDelete, true},
		{"delete", TokenDelete, false},
		{"REMOVE", TokenRemove, true},
		{"YES", TokenDelete, false},
		{"", TokenYes, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Match(tt.input, tt.required), "input %q required %q", tt.input, tt.required)
	}
}

func TestStdinGate(t *testing.T) {
	var out strings.Builder
	g := &StdinGate{In: strings.NewReader("DELETE\n"), Out: &out}

	resp, err := g.Prompt("Type DELETE to purge 45 items:")
	require.NoError(t, err)
	require.Equal(t, "DELETE", resp)
	require.Contains(t, out.String(), "Type DELETE to purge 45 items:")
}

func TestStdinGateSequentialPrompts(t *testing.T) {
	// piped input answering two prompts; the second answer must not be lost
	// to read-ahead from the first
	g := &StdinGate{In: strings.NewReader("YES\nDELETE\n"), Out: &strings.Builder{}}

	first, err := g.Prompt("first folder:")
	require.NoError(t, err)
	require.Equal(t, "YES", first)

	second, err := g.Prompt("second folder:")
	require.NoError(t, err)
	require.Equal(t, "DELETE", second)
}

func TestAskDecline(t *testing.T) {
	g := &StdinGate{In: strings.NewReader("no thanks\n"), Out: &strings.Builder{}}
	ok, err := Ask(g, "confirm?", TokenYes)
	require.NoError(t, err)
	require.False(t, ok)
}
