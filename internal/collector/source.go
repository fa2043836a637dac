/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/llm-d/llm-d-race-strategy-optimizer/api/v1alpha1"
)

// LapSource is the interface for pluggable lap data sources.
type LapSource interface {
	// Name identifies the source in logs (e.g., the file path).
	Name() string

	// Races returns every race recorded by the source.
	Races(ctx context.Context) (v1alpha1.LapDataDocument, error)
}

// FileSource reads a lap data document from a JSON file.
type FileSource struct {
	Path string
}

var _ LapSource = FileSource{}

// FileSources wraps each path in a FileSource.
func FileSources(paths ...string) []LapSource {
	sources := make([]LapSource, len(paths))
	for i, p := range paths {
		sources[i] = FileSource{Path: p}
	}
	return sources
}

func (s FileSource) Name() string {
	return s.Path
}

func (s FileSource) Races(_ context.Context) (v1alpha1.LapDataDocument, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var doc v1alpha1.LapDataDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return doc, nil
}
