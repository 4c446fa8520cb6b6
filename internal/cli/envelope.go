package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps a result with run metadata for downstream consumers.
type Envelope struct {
	RunID       string    `json:"run_id"`
	Tool        string    `json:"tool"`
	Version     string    `json:"version"`
	Root        string    `json:"root"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        any       `json:"data"`
}

// newRunID returns a fresh run identifier.
func newRunID() string {
	return uuid.NewString()
}

func newEnvelope(runID, root string, data any) Envelope {
	return Envelope{
		RunID:       runID,
		Tool:        toolName,
		Version:     Version,
		Root:        root,
		GeneratedAt: time.Now().UTC(),
		Data:        data,
	}
}

// writeJSON encodes v followed by a newline.
func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
