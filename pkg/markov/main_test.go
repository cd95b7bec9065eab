package markov

import (
	"encoding/binary"
	"strings"
	"testing"
)

// buildChain builds a chain from space separated lines, failing the test on error.
func buildChain(t testing.TB, lines ...string) *Chain {
	t.Helper()
	tokenized := make([][]string, 0, len(lines))
	for _, line := range lines {
		tokenized = append(tokenized, strings.Fields(line))
	}
	c, err := Build(tokenized)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return c
}

// le32 encodes values as consecutive little-endian int32s.
func le32(values ...int32) []byte {
	out := make([]byte, 0, 4*len(values))
	for _, v := range values {
		out = binary.LittleEndian.AppendUint32(out, uint32(v))
	}
	return out
}

// snapshot concatenates byte fragments into one snapshot.
func snapshot(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// benchCorpus returns a deterministic synthetic corpus of n lines.
func benchCorpus(n int) [][]string {
	words := strings.Fields("the quick brown fox jumps over lazy dog , . ! ? cat sat on a mat and ran away")
	lines := make([][]string, n)
	for i := range lines {
		length := 3 + i%9
		line := make([]string, length)
		for j := range line {
			line[j] = words[(i*7+j*13)%len(words)]
		}
		lines[i] = line
	}
	return lines
}
