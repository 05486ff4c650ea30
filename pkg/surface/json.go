package surface

import (
	"encoding/json"
	"io"

	"github.com/orgaudit/orgaudit/pkg/scoring"
)

// JSONRenderer marshals the per-repository results to indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(w io.Writer, result *scoring.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ranked(result))
}
