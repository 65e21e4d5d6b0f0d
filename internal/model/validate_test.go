package model

import (
	"errors"
	"strings"
	"testing"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestDecodePatch_Valid(t *testing.T) {
	p, err := DecodePatch([]byte(`{"theme":{"primaryColor":"#00ff00"},"modules":{"crm":{"enabled":false}},"features":{"showPricing":false}}`))
	if err != nil {
		t.Fatalf("DecodePatch: %v", err)
	}
	if p.Theme == nil || p.Theme.PrimaryColor == nil || *p.Theme.PrimaryColor != "#00ff00" {
		t.Errorf("theme = %+v", p.Theme)
	}
	if p.Theme.SecondaryColor != nil {
		t.Error("absent field decoded as set")
	}
	if mp, ok := p.Modules["crm"]; !ok || mp.Enabled == nil || *mp.Enabled {
		t.Errorf("modules = %+v", p.Modules)
	}
	if v, ok := p.Features["showPricing"]; !ok || v {
		t.Errorf("features = %v", p.Features)
	}
}

func TestDecodePatch_UnknownTopLevelKey(t *testing.T) {
	_, err := DecodePatch([]byte(`{"themes":{"primaryColor":"#00ff00"}}`))
	errs := fieldErrors(t, err)
	if !hasFieldError(errs, "themes") {
		t.Errorf("errors = %+v, want field 'themes'", errs)
	}
}

func TestDecodePatch_FieldPaths(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []FieldError
	}{
		{"unknown theme key", `{"theme":{"primary":"#00ff00"}}`,
			[]FieldError{{Field: "theme.primary", Message: "unknown field"}}},
		{"unknown module field", `{"modules":{"crm":{"nope":1}}}`,
			[]FieldError{{Field: "modules.crm.nope", Message: "unknown field"}}},
		{"unknown content field", `{"content":{"blog":{"drafts":2}}}`,
			[]FieldError{{Field: "content.blog.drafts", Message: "unknown field"}}},
		{"several problems", `{"theme":{"zeta":1,"alpha":2},"company":{"name":3}}`,
			[]FieldError{
				{Field: "company.name", Message: "must be of type string"},
				{Field: "theme.alpha", Message: "unknown field"},
				{Field: "theme.zeta", Message: "unknown field"},
			}},
		{"string expected", `{"theme":{"primaryColor":5}}`,
			[]FieldError{{Field: "theme.primaryColor", Message: "must be of type string"}}},
		{"boolean expected", `{"modules":{"crm":{"enabled":"no"}}}`,
			[]FieldError{{Field: "modules.crm.enabled", Message: "must be of type boolean"}}},
		{"integer expected", `{"content":{"gallery":{"projectCount":1.5}}}`,
			[]FieldError{{Field: "content.gallery.projectCount", Message: "must be of type integer"}}},
		{"object expected", `{"theme":"dark"}`,
			[]FieldError{{Field: "theme", Message: "must be of type object"}}},
		{"array expected", `{"content":{"homepage":{"sections":"hero"}}}`,
			[]FieldError{{Field: "content.homepage.sections", Message: "must be of type array"}}},
		{"array item", `{"content":{"homepage":{"sections":["hero",7]}}}`,
			[]FieldError{{Field: "content.homepage.sections.1", Message: "must be of type string"}}},
		{"time expected", `{"content":{"blog":{"lastUpdated":12}}}`,
			[]FieldError{{Field: "content.blog.lastUpdated", Message: "must be of type string"}}},
		{"top-level array", `[]`,
			[]FieldError{{Field: "body", Message: "must be of type object"}}},
		{"top-level string", `"x"`,
			[]FieldError{{Field: "body", Message: "must be of type object"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePatch([]byte(tt.body))
			errs := fieldErrors(t, err)
			if len(errs) != len(tt.want) {
				t.Fatalf("errors = %+v, want %+v", errs, tt.want)
			}
			for i := range errs {
				if errs[i] != tt.want[i] {
					t.Errorf("errors[%d] = %+v, want %+v", i, errs[i], tt.want[i])
				}
			}
			if strings.Contains(err.Error(), "model.") {
				t.Errorf("error leaks a Go type name: %v", err)
			}
		})
	}
}

func TestDecodePatch_NullLeavesUnchanged(t *testing.T) {
	p, err := DecodePatch([]byte(`{"theme":null,"modules":{"crm":{"enabled":null}}}`))
	if err != nil {
		t.Fatalf("DecodePatch: %v", err)
	}
	if p.Theme != nil || p.Modules["crm"].Enabled != nil {
		t.Errorf("patch = %+v", p)
	}
}

func TestDecodePatch_Malformed(t *testing.T) {
	for _, body := range []string{``, `{"theme":`, `{} {}`, `[1,2]`} {
		if _, err := DecodePatch([]byte(body)); err == nil {
			t.Errorf("DecodePatch(%q) succeeded", body)
		} else {
			fieldErrors(t, err)
		}
	}
}

func TestValidatePatch(t *testing.T) {
	base := Default()
	for _, tc := range []struct {
		name      string
		patch     Patch
		wantField string
	}{
		{"BadPrimary", Patch{Theme: &ThemePatch{PrimaryColor: strPtr("red")}}, "theme.primaryColor"},
		{"BadAccent", Patch{Theme: &ThemePatch{AccentColor: strPtr("#12345")}}, "theme.accentColor"},
		{"BadEmail", Patch{Company: &CompanyPatch{Email: strPtr("not-an-email")}}, "company.email"},
		{"UnknownModule", Patch{Modules: map[string]ModulePatch{"bogus": {Enabled: boolPtr(true)}}}, "modules.bogus"},
		{"EnableLocked", Patch{Modules: map[string]ModulePatch{"invoicing": {Enabled: boolPtr(true)}}}, "modules.invoicing.enabled"},
		{"LockAndEnable", Patch{Modules: map[string]ModulePatch{"crm": {Enabled: boolPtr(true), Locked: boolPtr(true)}}}, "modules.crm.enabled"},
		{"UnknownFeature", Patch{Features: map[string]bool{"darkMode": true}}, "features.darkMode"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			errs := fieldErrors(t, ValidatePatch(base, tc.patch))
			if !hasFieldError(errs, tc.wantField) {
				t.Errorf("errors = %+v, want field %q", errs, tc.wantField)
			}
		})
	}
}

func TestValidatePatch_Accepts(t *testing.T) {
	base := Default()
	for _, tc := range []struct {
		name  string
		patch Patch
	}{
		{"Empty", Patch{}},
		{"ShortHex", Patch{Theme: &ThemePatch{PrimaryColor: strPtr("#abc")}}},
		{"EmptyEmail", Patch{Company: &CompanyPatch{Email: strPtr("")}}},
		{"DisableModule", Patch{Modules: map[string]ModulePatch{"crm": {Enabled: boolPtr(false)}}}},
		{"UnlockAndEnable", Patch{Modules: map[string]ModulePatch{"invoicing": {Enabled: boolPtr(true), Locked: boolPtr(false)}}}},
		{"KnownFeature", Patch{Features: map[string]bool{"emergencyService": true}}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidatePatch(base, tc.patch); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidate_LockedEnabled(t *testing.T) {
	cfg := Default()
	cfg.Modules[7].Enabled = true
	errs := fieldErrors(t, Validate(cfg))
	if !hasFieldError(errs, "modules.invoicing.enabled") {
		t.Errorf("errors = %+v", errs)
	}
}

func TestValidate_DuplicateModule(t *testing.T) {
	cfg := Default()
	cfg.Modules = append(cfg.Modules, cfg.Modules[0])
	errs := fieldErrors(t, Validate(cfg))
	if !hasFieldError(errs, "modules.projectEstimator") {
		t.Errorf("errors = %+v", errs)
	}
}

func TestValidate_MissingColor(t *testing.T) {
	cfg := Default()
	cfg.Theme.SecondaryColor = ""
	errs := fieldErrors(t, Validate(cfg))
	if !hasFieldError(errs, "theme.secondaryColor") {
		t.Errorf("errors = %+v", errs)
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "theme.primaryColor", Message: "must be a hex color"},
		{Field: "features.x", Message: "unknown feature"},
	}}
	want := "validation failed: theme.primaryColor: must be a hex color; features.x: unknown feature"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !ve.HasErrors() {
		t.Error("HasErrors() = false")
	}
}
