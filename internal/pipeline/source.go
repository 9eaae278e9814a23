package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/calibweights/internal/weights"
)

// ErrColumn is returned for malformed CSV headers or fields.
var ErrColumn = errors.New("bad event column")

// EventSource yields events until it returns io.EOF.
type EventSource interface {
	Next() (weights.Record, error)
}

// SliceSource replays an in-memory event list.
type SliceSource struct {
	Events []weights.Record
	pos    int
}

// Next implements EventSource.
func (s *SliceSource) Next() (weights.Record, error) {
	if s.pos >= len(s.Events) {
		return nil, io.EOF
	}
	ev := s.Events[s.pos]
	s.pos++
	return ev, nil
}

// CSVSource reads one event per row. The header names the variables;
// every field must parse as a float. Booleans may be written as
// true/false and map to 1/0.
type CSVSource struct {
	r       *csv.Reader
	columns []string
	line    int
}

// NewCSVSource reads the header from r.
func NewCSVSource(r io.Reader) (*CSVSource, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	seen := make(map[string]bool, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, fmt.Errorf("%w: header column %d is empty", ErrColumn, i)
		}
		if seen[h] {
			return nil, fmt.Errorf("%w: duplicate header %q", ErrColumn, h)
		}
		seen[h] = true
		header[i] = h
	}
	return &CSVSource{r: cr, columns: header, line: 1}, nil
}

// Columns returns the variable names from the header.
func (s *CSVSource) Columns() []string { return append([]string(nil), s.columns...) }

// Next implements EventSource.
func (s *CSVSource) Next() (weights.Record, error) {
	row, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read event: %w", err)
	}
	s.line++
	ev := make(weights.Record, len(s.columns))
	for i, field := range row {
		v, err := parseField(field)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d column %q: %v", ErrColumn, s.line, s.columns[i], err)
		}
		ev[s.columns[i]] = v
	}
	return ev, nil
}

func parseField(f string) (float64, error) {
	f = strings.TrimSpace(f)
	switch strings.ToLower(f) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(f, 64)
}
