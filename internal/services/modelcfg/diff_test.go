package modelcfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffLinesInsertion(t *testing.T) {
	got := DiffLines("A\nB\nC", "A\nX\nB\nC")
	assert.Equal(t, "  A\n+ X\n  B\n  C", got)
}

func TestDiffLinesDeletion(t *testing.T) {
	got := DiffLines("A\nX\nB\nC", "A\nB\nC")
	assert.Equal(t, "  A\n- X\n  B\n  C", got)
}

func TestDiffLinesIdentical(t *testing.T) {
	got := DiffLines("A\nB\nC", "A\nB\nC")
	assert.Equal(t, "  A\n  B\n  C", got)
	for _, line := range strings.Split(got, "\n") {
		assert.True(t, strings.HasPrefix(line, "  "))
	}
}

func TestDiffLinesReplacement(t *testing.T) {
	// B never reappears in the target: deletion plus trailing addition.
	got := DiffLines("A\nB", "A\nC")
	assert.Equal(t, "  A\n- B\n+ C", got)
}

func TestDiffLinesTails(t *testing.T) {
	assert.Equal(t, "  A\n+ B\n+ C", DiffLines("A", "A\nB\nC"))
	assert.Equal(t, "  A\n- B\n- C", DiffLines("A\nB\nC", "A"))
}

func TestFingerprintStable(t *testing.T) {
	a := Fingerprint("[request_definition]")
	assert.Equal(t, a, Fingerprint("[request_definition]"))
	assert.NotEqual(t, a, Fingerprint("[policy_definition]"))
	assert.NotEmpty(t, a)
}
