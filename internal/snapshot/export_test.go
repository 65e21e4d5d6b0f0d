package snapshot

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

func TestExport(t *testing.T) {
	updated := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exported := updated.Add(time.Hour)
	cfg := model.Default()
	cfg.Company.Name = "Smith & Sons"

	var buf bytes.Buffer
	if err := Export(&model.Snapshot{Version: 9, Config: cfg, UpdatedAt: updated}, exported, &buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	// HTML escaping is off so the file stays readable.
	if !strings.Contains(buf.String(), `"Smith & Sons"`) {
		t.Errorf("company name escaped: %s", buf.String())
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Version != 9 || !doc.UpdatedAt.Equal(updated) || !doc.ExportedAt.Equal(exported) {
		t.Errorf("doc = %+v", doc)
	}
	if doc.StyleSheet != model.RenderThemeAsStyleSheet(cfg.Theme) {
		t.Errorf("styleSheet = %q", doc.StyleSheet)
	}
	if !model.Equal(doc.Config, cfg) {
		t.Error("config differs after export")
	}
	if keys := doc.Config.Modules.Keys(); keys[0] != "projectEstimator" {
		t.Errorf("module order lost: %v", keys)
	}
}
