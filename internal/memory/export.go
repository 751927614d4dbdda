package memory

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteJSON encodes records as an indented JSON array of {id, text, metadata}.
func WriteJSON(w io.Writer, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode memories: %w", err)
	}
	return nil
}

// ReadJSON decodes a JSON array written by WriteJSON. The legacy "meta" key is
// accepted in place of "metadata".
func ReadJSON(r io.Reader) ([]Record, error) {
	var raw []struct {
		ID       string   `json:"id"`
		Text     string   `json:"text"`
		Metadata Metadata `json:"metadata"`
		Meta     Metadata `json:"meta"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode memories: %w", err)
	}
	out := make([]Record, 0, len(raw))
	for _, item := range raw {
		meta := item.Metadata
		if meta == nil {
			meta = item.Meta
		}
		out = append(out, Record{ID: item.ID, Text: item.Text, Metadata: meta})
	}
	return out, nil
}
