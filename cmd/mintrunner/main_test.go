package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptConfirmer(t *testing.T) {
	tests := map[string]bool{
		"yes\n":   true,
		"Y\n":     true,
		" yes \n": true,
		"no\n":    false,
		"\n":      false,
		"yes":     true,
		"":        false,
	}
	for input, want := range tests {
		var out bytes.Buffer
		ok, err := promptConfirmer(strings.NewReader(input), &out, "balls")(12)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, ok, "input %q", input)
		assert.Contains(t, out.String(), "Would you like to mint 12 balls? (yes/no)")
	}
}

func TestMintCommandRejectsExtraArgs(t *testing.T) {
	cmd := mintCmd()
	assert.Error(t, cmd.Args(cmd, []string{"1", "2"}))
	assert.NoError(t, cmd.Args(cmd, []string{"5"}))
}
