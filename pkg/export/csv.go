package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// RenderCSV writes the header line followed by each row. The title is not emitted.
func RenderCSV(table Table) ([]byte, error) {
	if err := table.check(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(table.Headers); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := w.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
