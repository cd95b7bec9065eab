package corpus

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of goroutines Normalize uses when none is given.
const DefaultWorkers = 4

var (
	// punctuationRegex matches runs of punctuation that become their own token.
	punctuationRegex = regexp.MustCompile(`[;:,.!?]+`)
	// urlRegex matches "scheme://" anywhere in a line, or a "www." host.
	urlRegex = regexp.MustCompile(`(?i)[a-z][a-z0-9+.\-]*://|www\.`)
)

// CleanLine lowercases line, trims surrounding whitespace, removes NUL bytes
// and surrounds every punctuation run with spaces.
func CleanLine(line string) string {
	return spacePunctuation(cleanText(line))
}

func cleanText(line string) string {
	line = strings.ToLower(line)
	line = strings.TrimSpace(line)
	return strings.ReplaceAll(line, "\x00", "")
}

func spacePunctuation(line string) string {
	return punctuationRegex.ReplaceAllString(line, " $0 ")
}

// Rejected reports whether a line must be dropped from the corpus: it
// contains a URL, has no letter, is a '#' comment or hashtag line, or contains
// non-ASCII bytes.
func Rejected(line string) bool {
	if urlRegex.MatchString(line) {
		return true
	}
	if strings.HasPrefix(strings.TrimLeft(line, " \t"), "#") {
		return true
	}
	hasLetter := false
	for i := 0; i < len(line); i++ {
		b := line[i]
		if b >= 0x80 {
			return true
		}
		if ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') {
			hasLetter = true
		}
	}
	return !hasLetter
}

// NormalizeLine cleans line and returns it, or "" if it is rejected. The
// filters look at the text before punctuation spacing so that URLs are still
// recognizable.
func NormalizeLine(line string) string {
	text := cleanText(line)
	if Rejected(text) {
		return ""
	}
	return spacePunctuation(text)
}

// Normalize rewrites every line in place with NormalizeLine. The slice is cut
// into workers contiguous partitions of equal size which are processed
// concurrently; each worker only touches its own partition. If any worker
// fails the whole pass fails and lines must be discarded.
func Normalize(ctx context.Context, lines []string, workers int) error {
	return normalizeWith(ctx, lines, workers, NormalizeLine)
}

// normalizeWith runs the partitioned pass with clean applied to every line.
func normalizeWith(ctx context.Context, lines []string, workers int, clean func(string) string) error {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if len(lines) == 0 {
		return nil
	}

	size := (len(lines) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for start := 0; start < len(lines); start += size {
		part := lines[start:min(start+size, len(lines))]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("normalize worker for lines %d-%d panicked: %v", start, start+len(part)-1, r)
				}
			}()
			for i, line := range part {
				if i%1024 == 0 {
					if err := ctx.Err(); err != nil {
						return err
					}
				}
				part[i] = clean(line)
			}
			return nil
		})
	}
	return g.Wait()
}
