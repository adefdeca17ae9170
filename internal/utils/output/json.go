package output

import (
	"encoding/json"
	"io"

	"github.com/unapproachable/fairgame-fork/internal/probe"
)

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *probe.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(View(r))
}
