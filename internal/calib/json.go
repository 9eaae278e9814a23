package calib

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNullTable is returned by Decode for a null table document or element.
var ErrNullTable = errors.New("table is null")

type tableJSON struct {
	Name        string    `json:"name"`
	Axes        []Axis    `json:"axes"`
	Content     []float64 `json:"content"`
	Uncertainty []float64 `json:"uncertainty,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *Table) MarshalJSON() ([]byte, error) {
	return json.Marshal(tableJSON{
		Name:        t.name,
		Axes:        t.axes,
		Content:     t.content,
		Uncertainty: t.uncertainty,
	})
}

// UnmarshalJSON implements json.Unmarshaler. The decoded table goes through
// the same validation as New.
func (t *Table) UnmarshalJSON(b []byte) error {
	var raw tableJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	built, err := New(raw.Name, raw.Axes, raw.Content, raw.Uncertainty)
	if err != nil {
		return err
	}
	*t = *built
	return nil
}

// Decode reads one or more tables from r. The document is either a single
// table object or an array of them.
func Decode(r io.Reader) ([]*Table, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("decode tables: %w", ErrNullTable)
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []*Table
		if err := json.Unmarshal(raw, &many); err != nil {
			return nil, fmt.Errorf("decode tables: %w", err)
		}
		for i, t := range many {
			if t == nil {
				return nil, fmt.Errorf("decode tables: element %d: %w", i, ErrNullTable)
			}
		}
		return many, nil
	}
	var one Table
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	return []*Table{&one}, nil
}

// ReadFile decodes the tables in a JSON file.
func ReadFile(path string) ([]*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
