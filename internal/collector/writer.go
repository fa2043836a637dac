package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/llm-d/llm-d-race-strategy-optimizer/api/v1alpha1"
)

// WriteRatesDocument writes doc to path as indented JSON, creating missing parent
// directories. Tracks and compounds are written in sorted order.
func WriteRatesDocument(path string, doc v1alpha1.RatesDocument) error {
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return fmt.Errorf("encode rates document: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write rates document: %w", err)
	}
	return nil
}
