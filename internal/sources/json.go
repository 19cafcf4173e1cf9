package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"flowsheet/internal/query"
	"flowsheet/internal/table"
)

func init() { Register(query.SourceJSON, jsonAdapter{}) }

type jsonAdapter struct{}

func (jsonAdapter) Load(_ context.Context, src query.Source, _ *Environment) (*table.Table, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("sources: open json %q: %w", src.Path, err)
	}
	defer f.Close()
	grid, err := parseJSONGrid(f)
	if err != nil {
		return nil, fmt.Errorf("sources: parse json %q: %w", src.Path, err)
	}
	return table.FromGrid(grid, table.FromGridOptions{HasHeaders: true, InferTypes: false})
}

// parseJSONGrid reads a top-level JSON array of objects and produces a
// header row plus one row per element. Column order follows each key's
// first appearance across the stream (json.Decoder.Token preserves
// object key order, unlike decoding straight into map[string]any).
func parseJSONGrid(r io.Reader) ([][]any, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("json source must be a top-level array of objects")
	}

	var cols []string
	seen := make(map[string]bool)
	var records []map[string]any
	for dec.More() {
		rec, order, err := decodeOrderedObject(dec)
		if err != nil {
			return nil, err
		}
		for _, k := range order {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil { // closing ]
		return nil, err
	}

	grid := make([][]any, len(records)+1)
	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	grid[0] = header
	for i, rec := range records {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		grid[i+1] = row
	}
	return grid, nil
}

func decodeOrderedObject(dec *json.Decoder) (map[string]any, []string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("json array element must be an object")
	}
	rec := make(map[string]any)
	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, _ := keyTok.(string)
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		rec[key] = val
		order = append(order, key)
	}
	if _, err := dec.Token(); err != nil { // closing }
		return nil, nil, err
	}
	return rec, order, nil
}
