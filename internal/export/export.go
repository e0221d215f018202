package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/kquery/internal/model"
)

// header is the first JSONL record written by WriteJSONL.
type header struct {
	Version   string    `json:"version"`
	Type      string    `json:"type"`
	Job       string    `json:"job"`
	Entity    string    `json:"entity"`
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// WriteJSONL writes a header line followed by one line per entity, in page
// order.
func WriteJSONL(w io.Writer, job Job, page []model.Entity) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:   "1",
		Type:      "header",
		Job:       job.Name,
		Entity:    job.Entity,
		Timestamp: time.Now().UTC(),
		Count:     len(page),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, e := range page {
		if err := enc.Encode(record{Type: job.Entity, Data: e}); err != nil {
			return fmt.Errorf("encode %s %s: %w", job.Entity, e.EntityID(), err)
		}
	}
	return nil
}
