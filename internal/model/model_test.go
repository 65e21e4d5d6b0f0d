package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestDefault_Modules(t *testing.T) {
	cfg := Default()
	wantKeys := []string{
		"projectEstimator", "clientPortal", "jobManagement", "crm",
		"advancedAnalytics", "emailMarketing", "scheduling", "invoicing",
	}
	keys := cfg.Modules.Keys()
	if len(keys) != len(wantKeys) {
		t.Fatalf("got %d modules, want %d", len(keys), len(wantKeys))
	}
	for i, k := range wantKeys {
		if keys[i] != k {
			t.Errorf("module[%d] = %q, want %q", i, keys[i], k)
		}
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestDefault_FreshCopy(t *testing.T) {
	a := Default()
	a.Features["showPricing"] = false
	a.Modules[0].Enabled = false
	b := Default()
	if !b.Features["showPricing"] {
		t.Error("mutating one default leaked into the next")
	}
	if !b.Modules[0].Enabled {
		t.Error("mutating default modules leaked into the next")
	}
}

func TestModules_MarshalKeepsOrder(t *testing.T) {
	data, err := json.Marshal(Default().Modules)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	prev := -1
	for _, k := range Default().Modules.Keys() {
		i := strings.Index(s, `"`+k+`":`)
		if i < 0 {
			t.Fatalf("key %q missing from %s", k, s)
		}
		if i < prev {
			t.Errorf("key %q out of declaration order", k)
		}
		prev = i
	}
}

func TestModules_UnmarshalKeepsOrder(t *testing.T) {
	var m Modules
	err := json.Unmarshal([]byte(`{"zeta":{"enabled":true,"locked":false,"path":"/z/","name":"Z","description":""},"alpha":{"enabled":false,"locked":true,"path":"/a/","name":"A","description":""}}`), &m)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := strings.Join(m.Keys(), ","); got != "zeta,alpha" {
		t.Errorf("keys = %q, want %q", got, "zeta,alpha")
	}
	mod, ok := m.Get("alpha")
	if !ok || !mod.Locked || mod.Path != "/a/" {
		t.Errorf("alpha = %+v, %v", mod, ok)
	}
}

func TestModules_UnmarshalRejectsUnknownField(t *testing.T) {
	var m Modules
	err := json.Unmarshal([]byte(`{"crm":{"enabled":true,"color":"red"}}`), &m)
	if err == nil {
		t.Fatal("expected error for unknown module field")
	}
}

func TestModules_InOrder(t *testing.T) {
	def := Default().Modules
	reversed := make(Modules, len(def))
	for i, nm := range def {
		reversed[len(def)-1-i] = nm
	}

	tests := []struct {
		name string
		keys []string
		want []string
	}{
		{"full order", def.Keys(), def.Keys()},
		{"no order", nil, reversed.Keys()},
		{"partial", []string{"crm", "blog", "crm"}, append([]string{"crm"}, without(reversed.Keys(), "crm")...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reversed.InOrder(tt.keys).Keys()
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("InOrder = %v, want %v", got, tt.want)
			}
		})
	}
}

func without(keys []string, drop string) []string {
	var out []string
	for _, k := range keys {
		if k != drop {
			out = append(out, k)
		}
	}
	return out
}

func TestSiteConfig_JSONRoundTripPreservesOrder(t *testing.T) {
	data, err := json.Marshal(Default())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got SiteConfig
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !Equal(got, Default()) {
		t.Error("round-tripped config differs from the default")
	}
}

func TestActiveModules(t *testing.T) {
	cfg := Default()
	active := ActiveModules(cfg)
	want := []string{"projectEstimator", "clientPortal", "jobManagement", "crm"}
	if len(active) != len(want) {
		t.Fatalf("got %d active modules, want %d", len(active), len(want))
	}
	for i, k := range want {
		if active[i].Key != k {
			t.Errorf("active[%d] = %q, want %q", i, active[i].Key, k)
		}
	}

	// A module that is somehow enabled and locked is not active.
	cfg.Modules[4].Enabled = true
	for _, nm := range ActiveModules(cfg) {
		if nm.Key == "advancedAnalytics" {
			t.Error("locked module reported as active")
		}
	}
}

func TestLockedModules(t *testing.T) {
	locked := LockedModules(Default())
	want := []string{"advancedAnalytics", "emailMarketing", "scheduling", "invoicing"}
	if len(locked) != len(want) {
		t.Fatalf("got %d locked modules, want %d", len(locked), len(want))
	}
	for i, k := range want {
		if locked[i].Key != k {
			t.Errorf("locked[%d] = %q, want %q", i, locked[i].Key, k)
		}
	}
}

func TestToggleModule(t *testing.T) {
	t.Run("Unlocked", func(t *testing.T) {
		base := Default()
		got, changed := ToggleModule(base, "crm")
		if !changed {
			t.Fatal("expected change")
		}
		mod, _ := got.Modules.Get("crm")
		if mod.Enabled {
			t.Error("crm still enabled after toggle")
		}
		orig, _ := base.Modules.Get("crm")
		if !orig.Enabled {
			t.Error("toggle mutated its input")
		}
		// Only that one field differs.
		mod.Enabled = true
		if mod != orig {
			t.Errorf("toggle changed more than enabled: %+v vs %+v", mod, orig)
		}
		back, _ := ToggleModule(got, "crm")
		if !Equal(back, base) {
			t.Error("toggling twice did not restore the original")
		}
	})

	t.Run("Locked", func(t *testing.T) {
		base := Default()
		got, changed := ToggleModule(base, "invoicing")
		if changed {
			t.Error("locked module toggle reported a change")
		}
		if !Equal(got, base) {
			t.Error("locked module toggle changed the config")
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		base := Default()
		got, changed := ToggleModule(base, "nope")
		if changed || !Equal(got, base) {
			t.Error("unknown module toggle changed the config")
		}
	})
}

func TestRenderThemeAsStyleSheet(t *testing.T) {
	got := RenderThemeAsStyleSheet(Default().Theme)
	want := ":root {\n  --primary: #ff6a3e;\n  --secondary: #ffba43;\n  --headerColor: #1a1a1a;\n}"
	if got != want {
		t.Errorf("stylesheet =\n%s\nwant\n%s", got, want)
	}
	if again := RenderThemeAsStyleSheet(Default().Theme); again != got {
		t.Error("stylesheet is not deterministic")
	}
}

func TestRenderThemeAsStyleSheet_SingleLineChange(t *testing.T) {
	a := Default().Theme
	b := a
	b.PrimaryColor = "#00ff00"
	la := strings.Split(RenderThemeAsStyleSheet(a), "\n")
	lb := strings.Split(RenderThemeAsStyleSheet(b), "\n")
	if len(la) != len(lb) {
		t.Fatalf("line count changed: %d vs %d", len(la), len(lb))
	}
	diff := 0
	for i := range la {
		if la[i] != lb[i] {
			diff++
			if lb[i] != "  --primary: #00ff00;" {
				t.Errorf("changed line = %q", lb[i])
			}
		}
	}
	if diff != 1 {
		t.Errorf("%d lines differ, want 1", diff)
	}
}

func TestMerge_DeepRecord(t *testing.T) {
	base := Default()
	got := Merge(base, Patch{Theme: &ThemePatch{PrimaryColor: strPtr("#00ff00")}})
	if got.Theme.PrimaryColor != "#00ff00" {
		t.Errorf("PrimaryColor = %q", got.Theme.PrimaryColor)
	}
	if got.Theme.SecondaryColor != base.Theme.SecondaryColor || got.Theme.LogoURL != base.Theme.LogoURL {
		t.Error("sibling theme fields were not preserved")
	}
	if base.Theme.PrimaryColor != "#ff6a3e" {
		t.Error("merge mutated its base")
	}
}

func TestMerge_ModuleFields(t *testing.T) {
	got := Merge(Default(), Patch{Modules: map[string]ModulePatch{
		"crm": {Enabled: boolPtr(false), Name: strPtr("Customers")},
	}})
	mod, _ := got.Modules.Get("crm")
	if mod.Enabled || mod.Name != "Customers" || mod.Path != "/crm/" {
		t.Errorf("crm = %+v", mod)
	}
	if got := strings.Join(got.Modules.Keys(), ","); got != strings.Join(Default().Modules.Keys(), ",") {
		t.Errorf("module order changed: %s", got)
	}
}

func TestMerge_ReplacesLists(t *testing.T) {
	got := Merge(Default(), Patch{Content: &ContentPatch{Homepage: &HomepagePatch{Sections: []string{"hero"}}}})
	if s := got.Content.Homepage.Sections; len(s) != 1 || s[0] != "hero" {
		t.Errorf("Sections = %v, want [hero]", s)
	}
}

func TestMerge_Scalars(t *testing.T) {
	n := 12
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got := Merge(Default(), Patch{
		Features: map[string]bool{"emergencyService": true},
		Content:  &ContentPatch{Blog: &BlogPatch{PublishedCount: &n, LastUpdated: &ts}},
	})
	if !got.Features["emergencyService"] || !got.Features["showPricing"] {
		t.Errorf("features = %v", got.Features)
	}
	if got.Content.Blog.PublishedCount != 12 {
		t.Errorf("PublishedCount = %d", got.Content.Blog.PublishedCount)
	}
	if got.Content.Blog.LastUpdated == nil || !got.Content.Blog.LastUpdated.Equal(ts) {
		t.Errorf("LastUpdated = %v", got.Content.Blog.LastUpdated)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	n := 3
	for _, tc := range []struct {
		name  string
		patch Patch
	}{
		{"Empty", Patch{}},
		{"Theme", Patch{Theme: &ThemePatch{PrimaryColor: strPtr("#123456"), AccentColor: strPtr("#000")}}},
		{"Company", Patch{Company: &CompanyPatch{Name: strPtr("Acme Roofing")}}},
		{"Module", Patch{Modules: map[string]ModulePatch{"jobManagement": {Enabled: boolPtr(false)}}}},
		{"Mixed", Patch{
			Features: map[string]bool{"showPricing": false},
			Content:  &ContentPatch{Gallery: &GalleryPatch{ProjectCount: &n}},
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			once := Merge(Default(), tc.patch)
			twice := Merge(once, tc.patch)
			if !Equal(once, twice) {
				t.Error("merge(merge(x, p), p) != merge(x, p)")
			}
		})
	}
}

func TestMerge_EmptyPatchIsIdentity(t *testing.T) {
	if !Equal(Merge(Default(), Patch{}), Default()) {
		t.Error("empty patch changed the config")
	}
	if !(Patch{}).IsEmpty() {
		t.Error("zero patch not reported empty")
	}
}

func TestEqual(t *testing.T) {
	a, b := Default(), Default()
	if !Equal(a, b) {
		t.Fatal("two defaults are not equal")
	}
	b.Company.Phone = "(555) 000-0000"
	if Equal(a, b) {
		t.Error("configs with different phones compare equal")
	}
}

func TestChangeEvent(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	base := Default()

	t.Run("NoChange", func(t *testing.T) {
		if _, ok := ChangeEvent(base, Default(), 2, at); ok {
			t.Error("expected no event for identical configs")
		}
	})

	t.Run("ThemeOnly", func(t *testing.T) {
		after := Merge(base, Patch{Theme: &ThemePatch{PrimaryColor: strPtr("#00ff00")}})
		ev, ok := ChangeEvent(base, after, 2, at)
		if !ok || ev.Kind != EventThemeUpdated {
			t.Fatalf("event = %+v, %v", ev, ok)
		}
		if ev.Theme == nil || ev.Theme.PrimaryColor != "#00ff00" || ev.Config != nil {
			t.Errorf("theme payload = %+v", ev)
		}
		if ev.Version != 2 || !ev.Timestamp.Equal(at) {
			t.Errorf("version/timestamp = %d %v", ev.Version, ev.Timestamp)
		}
	})

	t.Run("SingleToggle", func(t *testing.T) {
		after, _ := ToggleModule(base, "clientPortal")
		ev, ok := ChangeEvent(base, after, 5, at)
		if !ok || ev.Kind != EventModuleToggled {
			t.Fatalf("event = %+v, %v", ev, ok)
		}
		if ev.Module != "clientPortal" || ev.Enabled == nil || *ev.Enabled {
			t.Errorf("module payload = %q %v", ev.Module, ev.Enabled)
		}
	})

	t.Run("TwoToggles", func(t *testing.T) {
		after, _ := ToggleModule(base, "clientPortal")
		after, _ = ToggleModule(after, "crm")
		ev, _ := ChangeEvent(base, after, 3, at)
		if ev.Kind != EventConfigUpdated || ev.Config == nil {
			t.Errorf("event = %+v", ev)
		}
	})

	t.Run("ModuleRename", func(t *testing.T) {
		after := Merge(base, Patch{Modules: map[string]ModulePatch{"crm": {Name: strPtr("Clients")}}})
		ev, _ := ChangeEvent(base, after, 3, at)
		if ev.Kind != EventConfigUpdated {
			t.Errorf("kind = %q, want %q", ev.Kind, EventConfigUpdated)
		}
	})

	t.Run("ThemeAndCompany", func(t *testing.T) {
		after := Merge(base, Patch{
			Theme:   &ThemePatch{PrimaryColor: strPtr("#00ff00")},
			Company: &CompanyPatch{Name: strPtr("Acme")},
		})
		ev, _ := ChangeEvent(base, after, 3, at)
		if ev.Kind != EventConfigUpdated || ev.Config.Company.Name != "Acme" {
			t.Errorf("event = %+v", ev)
		}
	})
}

func TestEventKind_IsValid(t *testing.T) {
	for _, tc := range []struct {
		kind EventKind
		want bool
	}{
		{EventConfigUpdated, true},
		{EventThemeUpdated, true},
		{EventModuleToggled, true},
		{EventKind("config.deleted"), false},
		{EventKind(""), false},
	} {
		if got := tc.kind.IsValid(); got != tc.want {
			t.Errorf("EventKind(%q).IsValid() = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestSubscriber_Expired(t *testing.T) {
	now := time.Now()
	past, future := now.Add(-time.Minute), now.Add(time.Minute)
	for _, tc := range []struct {
		name string
		exp  *time.Time
		want bool
	}{
		{"NoExpiry", nil, false},
		{"Past", &past, true},
		{"Future", &future, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := &Subscriber{ExpiresAt: tc.exp}
			if got := s.Expired(now); got != tc.want {
				t.Errorf("Expired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRevision_Older(t *testing.T) {
	tests := []struct {
		name     string
		rev, cur Revision
		want     bool
	}{
		{"lower version same epoch", Revision{Epoch: 7, Version: 2}, Revision{Epoch: 7, Version: 5}, true},
		{"same version", Revision{Epoch: 7, Version: 5}, Revision{Epoch: 7, Version: 5}, false},
		{"higher version", Revision{Epoch: 7, Version: 6}, Revision{Epoch: 7, Version: 5}, false},
		{"restarted origin", Revision{Epoch: 9, Version: 2}, Revision{Epoch: 7, Version: 5}, false},
		{"previous epoch", Revision{Epoch: 7, Version: 8}, Revision{Epoch: 9, Version: 2}, true},
		{"unknown epochs", Revision{Version: 2}, Revision{Version: 5}, true},
		{"one unknown epoch", Revision{Epoch: 9, Version: 2}, Revision{Version: 5}, false},
		{"zero version", Revision{Epoch: 7}, Revision{Epoch: 7, Version: 5}, false},
		{"nothing applied", Revision{Epoch: 7, Version: 2}, Revision{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rev.Older(tt.cur); got != tt.want {
				t.Errorf("%+v.Older(%+v) = %v, want %v", tt.rev, tt.cur, got, tt.want)
			}
		})
	}
}
