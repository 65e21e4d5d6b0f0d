package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strings"
	"time"
)

// Patch is a partial SiteConfig. A nil pointer or a missing map entry means
// "leave unchanged"; lists are replaced wholesale.
type Patch struct {
	Theme    *ThemePatch            `json:"theme,omitempty"`
	Company  *CompanyPatch          `json:"company,omitempty"`
	Modules  map[string]ModulePatch `json:"modules,omitempty" validate:"omitempty,dive"`
	Features map[string]bool        `json:"features,omitempty"`
	Content  *ContentPatch          `json:"content,omitempty"`
}

type ThemePatch struct {
	PrimaryColor   *string `json:"primaryColor,omitempty" validate:"omitnil,hexcolor"`
	SecondaryColor *string `json:"secondaryColor,omitempty" validate:"omitnil,hexcolor"`
	AccentColor    *string `json:"accentColor,omitempty" validate:"omitnil,hexcolor"`
	LogoURL        *string `json:"logoUrl,omitempty" validate:"omitnil,max=2048"`
	LogoDarkURL    *string `json:"logoDarkUrl,omitempty" validate:"omitnil,max=2048"`
	FaviconURL     *string `json:"faviconUrl,omitempty" validate:"omitnil,max=2048"`
}

type CompanyPatch struct {
	Name    *string `json:"name,omitempty" validate:"omitnil,max=200"`
	Phone   *string `json:"phone,omitempty" validate:"omitnil,max=50"`
	Email   *string `json:"email,omitempty" validate:"omitnil,omitempty,email"`
	Address *string `json:"address,omitempty" validate:"omitnil,max=500"`
}

type ModulePatch struct {
	Enabled     *bool   `json:"enabled,omitempty"`
	Locked      *bool   `json:"locked,omitempty"`
	Path        *string `json:"path,omitempty" validate:"omitnil,max=200"`
	Name        *string `json:"name,omitempty" validate:"omitnil,max=200"`
	Description *string `json:"description,omitempty" validate:"omitnil,max=1000"`
}

type ContentPatch struct {
	Homepage *HomepagePatch `json:"homepage,omitempty"`
	Blog     *BlogPatch     `json:"blog,omitempty"`
	Gallery  *GalleryPatch  `json:"gallery,omitempty"`
	Reviews  *ReviewsPatch  `json:"reviews,omitempty"`
}

type HomepagePatch struct {
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
	Sections    []string   `json:"sections,omitempty" validate:"omitempty,dive,required,max=100"`
}

type BlogPatch struct {
	LastUpdated    *time.Time `json:"lastUpdated,omitempty"`
	PublishedCount *int       `json:"publishedCount,omitempty" validate:"omitnil,min=0"`
}

type GalleryPatch struct {
	LastUpdated  *time.Time `json:"lastUpdated,omitempty"`
	ProjectCount *int       `json:"projectCount,omitempty" validate:"omitnil,min=0"`
}

type ReviewsPatch struct {
	LastUpdated      *time.Time `json:"lastUpdated,omitempty"`
	TestimonialCount *int       `json:"testimonialCount,omitempty" validate:"omitnil,min=0"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Theme == nil && p.Company == nil && len(p.Modules) == 0 &&
		len(p.Features) == 0 && p.Content == nil
}

// DecodePatch parses a JSON partial config. Unknown keys at any level and
// type mismatches are reported as a *ValidationError under their dotted
// path.
func DecodePatch(data []byte) (Patch, error) {
	var (
		p   Patch
		raw json.RawMessage
	)
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return p, &ValidationError{Errors: []FieldError{{Field: "body", Message: "is required"}}}
		}
		return p, decodeError(err)
	}
	if dec.More() {
		return p, &ValidationError{Errors: []FieldError{{Field: "body", Message: "must contain a single JSON object"}}}
	}

	ve := &ValidationError{}
	checkShape(ve, "", raw, reflect.TypeOf(p))
	if ve.HasErrors() {
		return p, ve
	}

	strict := json.NewDecoder(bytes.NewReader(raw))
	strict.DisallowUnknownFields()
	if err := strict.Decode(&p); err != nil {
		return p, decodeError(err)
	}
	return p, nil
}

func decodeError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ValidationError{Errors: []FieldError{{
			Field:   pathOrBody(typeErr.Field),
			Message: "must be of type " + jsonKind(typeErr.Type),
		}}}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ValidationError{Errors: []FieldError{{Field: "body", Message: "malformed JSON: " + syntaxErr.Error()}}}
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &ValidationError{Errors: []FieldError{{Field: "body", Message: "malformed JSON: unexpected end of input"}}}
	}
	return &ValidationError{Errors: []FieldError{{Field: "body", Message: strings.TrimPrefix(err.Error(), "json: ")}}}
}

// Merge overlays p onto base. Records merge field by field, lists and scalars
// are replaced. Merge never mutates base, and applying the same patch twice
// yields the same result as applying it once.
func Merge(base SiteConfig, p Patch) SiteConfig {
	out := base.Clone()

	if t := p.Theme; t != nil {
		setString(&out.Theme.PrimaryColor, t.PrimaryColor)
		setString(&out.Theme.SecondaryColor, t.SecondaryColor)
		setString(&out.Theme.AccentColor, t.AccentColor)
		setString(&out.Theme.LogoURL, t.LogoURL)
		setString(&out.Theme.LogoDarkURL, t.LogoDarkURL)
		setString(&out.Theme.FaviconURL, t.FaviconURL)
	}

	if c := p.Company; c != nil {
		setString(&out.Company.Name, c.Name)
		setString(&out.Company.Phone, c.Phone)
		setString(&out.Company.Email, c.Email)
		setString(&out.Company.Address, c.Address)
	}

	// Walk in declaration order so the result does not depend on map order.
	for i := range out.Modules {
		mp, ok := p.Modules[out.Modules[i].Key]
		if !ok {
			continue
		}
		m := &out.Modules[i].Module
		setBool(&m.Enabled, mp.Enabled)
		setBool(&m.Locked, mp.Locked)
		setString(&m.Path, mp.Path)
		setString(&m.Name, mp.Name)
		setString(&m.Description, mp.Description)
	}

	if len(p.Features) > 0 && out.Features == nil {
		out.Features = make(Features, len(p.Features))
	}
	for k, v := range p.Features {
		if _, known := out.Features[k]; known {
			out.Features[k] = v
		}
	}

	if c := p.Content; c != nil {
		if h := c.Homepage; h != nil {
			setTime(&out.Content.Homepage.LastUpdated, h.LastUpdated)
			if h.Sections != nil {
				out.Content.Homepage.Sections = append([]string{}, h.Sections...)
			}
		}
		if b := c.Blog; b != nil {
			setTime(&out.Content.Blog.LastUpdated, b.LastUpdated)
			setInt(&out.Content.Blog.PublishedCount, b.PublishedCount)
		}
		if g := c.Gallery; g != nil {
			setTime(&out.Content.Gallery.LastUpdated, g.LastUpdated)
			setInt(&out.Content.Gallery.ProjectCount, g.ProjectCount)
		}
		if r := c.Reviews; r != nil {
			setTime(&out.Content.Reviews.LastUpdated, r.LastUpdated)
			setInt(&out.Content.Reviews.TestimonialCount, r.TestimonialCount)
		}
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setTime(dst **time.Time, v *time.Time) {
	if v != nil {
		t := *v
		*dst = &t
	}
}
