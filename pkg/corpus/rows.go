package corpus

import (
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"strings"
)

const (
	// Comma is the field delimiter of the corpus.
	Comma = ';'
	// TextColumn is the index of the first free-text column; the columns
	// before it hold metadata.
	TextColumn = 4
)

type rowOptions struct {
	header bool
}

// RowOption configures ReadRows.
type RowOption func(*rowOptions)

// WithHeaderRow makes ReadRows discard the first record as a header.
// Default: every record is corpus text.
func WithHeaderRow() RowOption {
	return func(o *rowOptions) { o.header = true }
}

// ReadRows reads a semicolon-delimited corpus from r and returns one raw line
// per usable row: the concatenation, without separator, of every field from
// TextColumn onward. Rows may have any number of fields. Rows that cannot be
// parsed or that have too few fields are logged and skipped; any other read
// error aborts the whole read.
func ReadRows(r io.Reader, logger *slog.Logger, opts ...RowOption) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	options := &rowOptions{}
	for _, opt := range opts {
		opt(options)
	}

	reader := csv.NewReader(r)
	reader.Comma = Comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	var lines []string
	var skipped int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Warn("Skipping unreadable row", slog.Int("line", parseErr.Line), slog.Any("error", parseErr.Err))
				skipped++
				continue
			}
			return nil, err
		}

		if options.header {
			options.header = false
			logger.Debug("Skipping header row", slog.Int("fields", len(record)))
			continue
		}

		if len(record) <= TextColumn {
			line, _ := reader.FieldPos(0)
			logger.Warn("Skipping row with too few fields",
				slog.Int("line", line),
				slog.Int("fields", len(record)),
			)
			skipped++
			continue
		}
		lines = append(lines, strings.Join(record[TextColumn:], ""))
	}

	logger.Debug("Rows read", slog.Int("rows", len(lines)), slog.Int("skipped", skipped))
	return lines, nil
}
