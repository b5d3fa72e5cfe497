package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ChrisMcGann/phrp/pkg/core"
)

// RowReader streams mapped rows from one result file.
type RowReader interface {
	// Next advances to the next row. Returns false at end of input or on a
	// fatal read error; a row that fails to map is returned with Row().Err set.
	Next() bool
	Row() *Row
	Err() error
}

// NewRowReader returns the reader for a schema: XML for X!Tandem, tab-delimited otherwise.
func NewRowReader(r io.Reader, schema *Schema) RowReader {
	if schema.XML {
		return newXTandemReader(r, schema)
	}
	return NewTabularReader(r, schema)
}

// TabularReader provides streaming access to tab-delimited result files
type TabularReader struct {
	scanner *bufio.Scanner
	schema  *Schema
	header  []string
	lineNum int
	current *Row
	err     error
}

// maxLineLength bounds a single record; MaxQuant rows with long protein lists
// exceed bufio's default.
const maxLineLength = 4 * 1024 * 1024

// NewTabularReader creates a new tab-delimited reader
func NewTabularReader(r io.Reader, schema *Schema) *TabularReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	return &TabularReader{
		scanner: scanner,
		schema:  schema,
	}
}

// Header returns the header columns once the first row has been read.
func (r *TabularReader) Header() []string {
	return r.header
}

// Next advances to the next data row.
func (r *TabularReader) Next() bool {
	r.current = nil
	if r.err != nil {
		return false
	}

	if r.header == nil {
		if err := r.readHeader(); err != nil {
			if err != io.EOF {
				r.err = err
			}
			return false
		}
	}

	for r.scanner.Scan() {
		r.lineNum++
		raw := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}

		r.current = r.mapLine(raw)
		return true
	}

	if err := r.scanner.Err(); err != nil {
		r.err = fmt.Errorf("line %d: %w", r.lineNum, err)
	}
	return false
}

// Row returns the current row
func (r *TabularReader) Row() *Row {
	return r.current
}

// Err returns any error encountered during reading
func (r *TabularReader) Err() error {
	return r.err
}

// readHeader consumes lines up to and including the header. With a
// HeaderMarker, preamble lines without the marker column are skipped.
func (r *TabularReader) readHeader() error {
	for r.scanner.Scan() {
		r.lineNum++
		line := strings.TrimRight(r.scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		cols := splitColumns(line)
		if r.schema.HeaderMarker != "" && !containsColumn(cols, r.schema.HeaderMarker) {
			continue
		}
		r.header = cols
		return nil
	}
	if err := r.scanner.Err(); err != nil {
		return fmt.Errorf("line %d: %w", r.lineNum, err)
	}
	return io.EOF
}

func (r *TabularReader) mapLine(raw string) *Row {
	values := strings.Split(raw, "\t")
	cols := make(Columns, len(r.header))
	for i, name := range r.header {
		if i < len(values) {
			cols[name] = values[i]
		} else {
			cols[name] = ""
		}
	}

	row, err := r.schema.Map(cols)
	row.Line = r.lineNum
	row.Raw = raw
	if err == nil && len(values) < 2 {
		err = fmt.Errorf("%w: expected %d columns, found %d", core.ErrMalformedRecord, len(r.header), len(values))
	}
	if err != nil {
		row.Err = err
	}
	return &row
}

func splitColumns(line string) []string {
	cols := strings.Split(line, "\t")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func containsColumn(cols []string, name string) bool {
	for _, c := range cols {
		if c == name {
			return true
		}
	}
	return false
}

// ReadHeader returns the first header line of a tab-delimited stream, or
// nil if the input has no tab-delimited line within the first lines.
func ReadHeader(r io.Reader, maxLines int) []string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	for n := 0; n < maxLines && scanner.Scan(); n++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		if !strings.Contains(line, "\t") {
			continue
		}
		return splitColumns(line)
	}
	return nil
}
