package pipeline

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/goflight/internal/flight/entity"
)

const cancelCheckEvery = 1024

// ParseTable reads comma-delimited text whose first record is the header.
// Records that break the grammar or have the wrong number of fields are
// skipped and counted in FlightTable.Dropped.
func ParseTable(ctx context.Context, text string) (*entity.FlightTable, error) {
	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = 0

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	table := &entity.FlightTable{Columns: uniqueColumns(header)}
	for n := 0; ; n++ {
		if n%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, &ParseError{Reason: err.Error(), Dropped: table.Dropped}
			}
			table.Dropped++
			slog.DebugContext(ctx, "skip malformed flight log row", "line", perr.Line, "error", perr.Err)
			continue
		}

		row := make([]entity.Value, len(record))
		for i, cell := range record {
			row[i] = entity.NewValue(cell)
		}
		table.Rows = append(table.Rows, row)
	}

	if len(table.Rows) == 0 {
		return nil, &ParseError{Reason: "no usable rows", Dropped: table.Dropped}
	}

	return table, nil
}

func readHeader(reader *csv.Reader) ([]string, error) {
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Reason: "no header row"}
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, &ParseError{Reason: fmt.Sprintf("invalid header row: %v", perr.Err)}
			}
			return nil, &ParseError{Reason: err.Error()}
		}

		if !blankRecord(record) {
			return record, nil
		}
		// A header made only of empty cells fixed the field count; reset it so
		// the real header can set its own.
		reader.FieldsPerRecord = 0
	}
}

func blankRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// uniqueColumns names empty header cells and suffixes duplicates so every
// column can be addressed by name.
func uniqueColumns(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]struct{}, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}

		candidate := name
		for n := 1; ; n++ {
			if _, taken := used[candidate]; !taken {
				break
			}
			candidate = fmt.Sprintf("%s.%d", name, n)
		}
		used[candidate] = struct{}{}
		out[i] = candidate
	}
	return out
}
