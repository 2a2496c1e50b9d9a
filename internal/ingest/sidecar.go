package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// sidecarInfo mirrors the descriptor file the upload transport writes next to
// each upload's data. It is the fallback read path when an event payload is
// incomplete.
type sidecarInfo struct {
	ID       string            `json:"ID"`
	Size     int64             `json:"Size"`
	Offset   int64             `json:"Offset"`
	MetaData map[string]string `json:"MetaData"`
	Storage  map[string]string `json:"Storage"`
}

func readSidecar(dir, uploadID string) (*sidecarInfo, error) {
	if dir == "" {
		return nil, fmt.Errorf("no sidecar directory configured")
	}

	data, err := os.ReadFile(filepath.Join(dir, uploadID+".info"))
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar for %s: %w", uploadID, err)
	}

	var info sidecarInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar for %s: %w", uploadID, err)
	}
	return &info, nil
}
