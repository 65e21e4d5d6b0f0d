package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError `json:"fields"`
}

// FieldError represents a single validation failure on a named field.
// Field is a dotted path such as "theme.primaryColor".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidatePatch checks p against the tag rules and against the closed key
// sets of base: module and feature keys must already exist, and a locked
// module cannot be enabled.
func ValidatePatch(base SiteConfig, p Patch) error {
	var ve ValidationError
	collectTagErrors(&ve, validate.Struct(p))

	for _, key := range sortedKeys(p.Modules) {
		mp := p.Modules[key]
		mod, ok := base.Modules.Get(key)
		if !ok {
			ve.add("modules."+key, "unknown module")
			continue
		}
		locked := mod.Locked
		if mp.Locked != nil {
			locked = *mp.Locked
		}
		if locked && mp.Enabled != nil && *mp.Enabled {
			ve.add("modules."+key+".enabled", "cannot enable a locked module")
		}
	}

	for _, key := range sortedKeys(p.Features) {
		if _, ok := base.Features[key]; !ok {
			ve.add("features."+key, "unknown feature")
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// Validate checks a complete SiteConfig.
func Validate(cfg SiteConfig) error {
	var ve ValidationError
	collectTagErrors(&ve, validate.Struct(cfg))

	seen := make(map[string]bool, len(cfg.Modules))
	for _, nm := range cfg.Modules {
		if nm.Key == "" {
			ve.add("modules", "module key is required")
			continue
		}
		if seen[nm.Key] {
			ve.add("modules."+nm.Key, "duplicate module key")
		}
		seen[nm.Key] = true
		if nm.Locked && nm.Enabled {
			ve.add("modules."+nm.Key+".enabled", "a locked module cannot be enabled")
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func collectTagErrors(ve *ValidationError, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		ve.add("body", err.Error())
		return
	}
	for _, fe := range verrs {
		ve.add(fieldPath(fe.Namespace()), tagMessage(fe))
	}
}

// fieldPath turns a validator namespace ("Patch.theme.primaryColor",
// "Patch.modules[crm].name") into a dotted path ("theme.primaryColor",
// "modules.crm.name").
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	ns = strings.ReplaceAll(ns, "[", ".")
	return strings.ReplaceAll(ns, "]", "")
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "hexcolor":
		return fmt.Sprintf("must be a hex color, got %q", fmt.Sprint(fe.Value()))
	case "email":
		return fmt.Sprintf("must be an email address, got %q", fmt.Sprint(fe.Value()))
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
