package markov

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"
)

// WriteText writes a human-readable dump of c to w: the vocabulary joined by
// semicolons, the start and end index lists, then one line per token index
// listing its successors as "target -> count". The format is meant for
// inspection only and cannot be read back.
func WriteText(w io.Writer, c *Chain) error {
	bw := bufio.NewWriter(w)

	for _, token := range c.tokens {
		_, _ = fmt.Fprintf(bw, "%s;", token)
	}
	_, _ = bw.WriteString("\n")

	writeIndexList(bw, "start", c.starts)
	writeIndexList(bw, "end", c.ends)

	for id, choices := range c.next {
		_, _ = fmt.Fprintf(bw, "%d: [", id)
		for _, choice := range choices {
			_, _ = fmt.Fprintf(bw, "%d -> %d, ", choice.Id, choice.Freq)
		}
		_, _ = bw.WriteString("]\n")
	}

	return bw.Flush()
}

func writeIndexList(w *bufio.Writer, name string, ids []int) {
	_, _ = fmt.Fprintf(w, "%s: [", name)
	for _, id := range ids {
		_, _ = fmt.Fprintf(w, "%d, ", id)
	}
	_, _ = w.WriteString("]\n")
}

// SaveFile atomically writes the binary snapshot of c to path.
func SaveFile(path string, c *Chain) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode chain: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SaveTextFile atomically writes the text dump of c to path.
func SaveTextFile(path string, c *Chain) error {
	var buf bytes.Buffer
	if err := WriteText(&buf, c); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// LoadFile reads a binary snapshot from path.
func LoadFile(path string) (*Chain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return c, nil
}
