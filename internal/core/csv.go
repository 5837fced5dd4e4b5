package core

// csv.go decodes a CSV upload into batch candidates.
//
// The first non-empty row is the header; columns are matched to attributes
// by column or field name, case-insensitively. Unknown columns are ignored.
// A UTF-8 BOM is skipped and invalid UTF-8 in cells is replaced so that
// exports from spreadsheet tools decode cleanly.

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after a leading BOM, if present.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

func sanitizeCell(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return CleanCell(s)
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// DecodeCSV reads candidates of type T from r. Empty cells leave the
// attribute at its zero value (nil for pointers). A cell that cannot be
// converted fails the whole file with its line number.
func DecodeCSV[T any](r io.Reader, schema *Schema) ([]*T, error) {
	cr := csv.NewReader(skipBOM(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		header  HeaderIndex
		columns []Attribute
		out     []*T
	)

	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isEmptyRow(row) {
			continue
		}

		if header == nil {
			header = MakeHeaderIndex(row)
			cols, err := headerColumns(schema, header)
			if err != nil {
				return nil, err
			}
			columns = cols
			continue
		}

		rec := reflect.New(schema.Type).Interface().(*T)
		for _, attr := range columns {
			pos := headerPosition(header, attr)
			if pos < 0 || pos >= len(row) {
				continue
			}
			cell := sanitizeCell(row[pos])
			if cell == "" {
				continue
			}
			v, err := attr.Coerce(cell)
			if err != nil {
				return nil, fmt.Errorf("invalid csv: line %d: %w", line, err)
			}
			attr.Set(rec, v)
		}
		out = append(out, rec)
	}

	if header == nil {
		return nil, errors.New("empty file")
	}
	return out, nil
}

// headerColumns returns the writable attributes present in the header and
// fails when a required one is absent.
func headerColumns(schema *Schema, header HeaderIndex) ([]Attribute, error) {
	var cols []Attribute
	for _, attr := range schema.Writable() {
		if headerPosition(header, attr) < 0 {
			if attr.Required {
				return nil, fmt.Errorf("invalid csv: missing required column %q", attr.Column)
			}
			continue
		}
		cols = append(cols, attr)
	}
	return cols, nil
}

func headerPosition(header HeaderIndex, attr Attribute) int {
	if pos, ok := header[strings.ToLower(attr.Column)]; ok {
		return pos
	}
	if pos, ok := header[strings.ToLower(attr.Name)]; ok {
		return pos
	}
	return -1
}
