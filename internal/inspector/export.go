package inspector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lueurxax/generation-inspector/internal/platform/observability"
)

const exportFileMode = 0o644

// ExportDataset writes the working table's base-model records back to
// newline-delimited JSON, one file per distinct file_name under dir,
// overwriting existing files. Session-only fields are stripped from every
// object.
func ExportDataset(s *Session, dir string) error {
	if s.baseModel == "" {
		return fmt.Errorf("no base model selected")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	groups := make(map[string][]Record)
	var order []string
	for _, entry := range s.table {
		for _, record := range entry[s.baseModel] {
			name := record.FileName()
			if _, seen := groups[name]; !seen {
				order = append(order, name)
			}
			groups[name] = append(groups[name], record.Exportable())
		}
	}

	exported := 0
	for _, name := range order {
		lines := make([]byte, 0, 1024)
		for i, record := range groups[name] {
			line, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("marshal record for %s: %w", name, err)
			}
			if i > 0 {
				lines = append(lines, '\n')
			}
			lines = append(lines, line...)
		}
		path := filepath.Join(dir, name+".jsonl")
		if err := os.WriteFile(path, lines, exportFileMode); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		exported += len(groups[name])
	}

	observability.ExportedRecords.Add(float64(exported))
	s.logger.Info().
		Str("dir", dir).
		Int("files", len(order)).
		Int("records", exported).
		Msg("dataset exported")
	return nil
}
