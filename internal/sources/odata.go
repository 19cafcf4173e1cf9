package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"flowsheet/internal/table"
)

// loadODataEnvelope unwraps the {"value": [...]} envelope OData feeds
// return and builds a Table from the inner array the same way a plain
// JSON array response would be handled.
func loadODataEnvelope(r io.Reader) (*table.Table, error) {
	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("sources: decode odata envelope: %w", err)
	}
	if envelope.Value == nil {
		return nil, fmt.Errorf("sources: odata response has no \"value\" array")
	}
	grid, err := parseJSONGrid(bytes.NewReader(envelope.Value))
	if err != nil {
		return nil, fmt.Errorf("sources: parse odata value array: %w", err)
	}
	return table.FromGrid(grid, table.FromGridOptions{HasHeaders: true, InferTypes: false})
}
