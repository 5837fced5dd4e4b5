package core

// convert.go turns loosely formatted text (CSV cells, path segments, query
// values) into the Go values attributes hold.
//
// Handled quirks:
//   - Several date layouts (ISO, US, RFC 3339)
//   - Thousands separators in numbers
//   - Boolean spellings (yes/no, true/false, t/f, 1/0)
//   - Excel formula prefixes (="value") and stray quotes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// numericRegex validates a number after separators are stripped.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
}

func parseInt(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return strconv.ParseInt(s, 10, 64)
}

func parseFloat(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !numericRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid number: %q", s)
	}
	return strconv.ParseFloat(s, 64)
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date: %q", s)
}

// ParseIDs parses a comma-separated id list such as "1, 2,3".
// Blank entries are skipped.
func ParseIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// HeaderIndex maps lowercased header names to their column position.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		idx[strings.ToLower(CleanCell(h))] = i
	}
	return idx
}

// CleanCell strips whitespace, an Excel formula prefix and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}
