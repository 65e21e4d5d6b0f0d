package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// FormatVersion identifies the document layout written by Export.
const FormatVersion = "1"

// Document is the exported JSON document.
type Document struct {
	Format     string           `json:"format"`
	Version    int64            `json:"version"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	ExportedAt time.Time        `json:"exportedAt"`
	StyleSheet string           `json:"styleSheet"`
	Config     model.SiteConfig `json:"config"`
}

// Export writes snap as an indented JSON Document to w.
func Export(snap *model.Snapshot, at time.Time, w io.Writer) error {
	doc := Document{
		Format:     FormatVersion,
		Version:    snap.Version,
		UpdatedAt:  snap.UpdatedAt,
		ExportedAt: at,
		StyleSheet: model.RenderThemeAsStyleSheet(snap.Config.Theme),
		Config:     snap.Config,
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// peekVersion returns the version recorded in an exported document, or 0
// when data is not one.
func peekVersion(data []byte) int64 {
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0
	}
	return head.Version
}
