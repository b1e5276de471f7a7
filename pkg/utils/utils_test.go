package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanFolderName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Sousou no Frieren", "Sousou no Frieren"},
		{"Frieren: Beyond Journey's End", "Frieren Beyond Journey's End"},
		{"Re:ZERO - Starting Life in Another World", "ReZERO - Starting Life in Another World"},
		{"Fate/Zero", "FateZero"},
		{"Is It Wrong to Pick Up Girls in a Dungeon?", "Is It Wrong to Pick Up Girls in a Dungeon"},
		{"  Spy   x\tFamily  ", "Spy x Family"},
		{"K-On!", "K-On!"},
		{"Steins;Gate", "Steins;Gate"},
		{"<Oshi no Ko>", "Oshi no Ko"},
		{"...Trailing dots...", "Trailing dots"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanFolderName(tt.input))
		})
	}
}
