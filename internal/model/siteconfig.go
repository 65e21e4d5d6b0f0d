package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// SiteConfig is the complete site configuration shared by the admin
// dashboard and every client website.
type SiteConfig struct {
	Theme    Theme    `json:"theme"`
	Company  Company  `json:"company"`
	Modules  Modules  `json:"modules" validate:"dive"`
	Features Features `json:"features"`
	Content  Content  `json:"content"`
}

// Theme holds brand colors and asset URLs.
type Theme struct {
	PrimaryColor   string `json:"primaryColor" toml:"primary_color" validate:"required,hexcolor"`
	SecondaryColor string `json:"secondaryColor" toml:"secondary_color" validate:"required,hexcolor"`
	AccentColor    string `json:"accentColor" toml:"accent_color" validate:"required,hexcolor"`
	LogoURL        string `json:"logoUrl" toml:"logo_url" validate:"max=2048"`
	LogoDarkURL    string `json:"logoDarkUrl" toml:"logo_dark_url" validate:"max=2048"`
	FaviconURL     string `json:"faviconUrl" toml:"favicon_url" validate:"max=2048"`
}

// Company holds the business contact details rendered on client sites.
type Company struct {
	Name    string `json:"name" toml:"name" validate:"max=200"`
	Phone   string `json:"phone" toml:"phone" validate:"max=50"`
	Email   string `json:"email" toml:"email" validate:"omitempty,email"`
	Address string `json:"address" toml:"address" validate:"max=500"`
}

// Features are the legacy on/off toggles for website sections.
type Features map[string]bool

// Content is metadata about the editable content sections.
type Content struct {
	Homepage HomepageContent `json:"homepage"`
	Blog     BlogContent     `json:"blog"`
	Gallery  GalleryContent  `json:"gallery"`
	Reviews  ReviewsContent  `json:"reviews"`
}

type HomepageContent struct {
	LastUpdated *time.Time `json:"lastUpdated"`
	Sections    []string   `json:"sections"`
}

type BlogContent struct {
	LastUpdated    *time.Time `json:"lastUpdated"`
	PublishedCount int        `json:"publishedCount" validate:"min=0"`
}

type GalleryContent struct {
	LastUpdated  *time.Time `json:"lastUpdated"`
	ProjectCount int        `json:"projectCount" validate:"min=0"`
}

type ReviewsContent struct {
	LastUpdated      *time.Time `json:"lastUpdated"`
	TestimonialCount int        `json:"testimonialCount" validate:"min=0"`
}

// Snapshot is a stored SiteConfig together with its version. Version 1 is
// the seed value and every successful replace increments it by one. Epoch
// names the store lineage the version counts in; a store that loses its
// data on restart starts a new epoch.
type Snapshot struct {
	Version   int64      `json:"version"`
	Epoch     int64      `json:"epoch,omitempty"`
	Config    SiteConfig `json:"config"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Revision returns the snapshot's position in its lineage.
func (s Snapshot) Revision() Revision {
	return Revision{Epoch: s.Epoch, Version: s.Version}
}

// Revision orders config values. Versions only compare within one epoch.
type Revision struct {
	Epoch   int64 `json:"epoch,omitempty"`
	Version int64 `json:"version"`
}

// Older reports whether r predates cur. A revision from a later epoch is
// never older whatever its version, and a zero epoch or version is never
// older.
func (r Revision) Older(cur Revision) bool {
	if r.Version == 0 || cur.Version == 0 {
		return false
	}
	if r.Epoch != cur.Epoch {
		if r.Epoch == 0 || cur.Epoch == 0 {
			return false
		}
		return r.Epoch < cur.Epoch
	}
	return r.Version < cur.Version
}

// Default returns a fresh copy of the built-in site configuration.
func Default() SiteConfig {
	return SiteConfig{
		Theme: Theme{
			PrimaryColor:   "#ff6a3e",
			SecondaryColor: "#ffba43",
			AccentColor:    "#1a1a1a",
			LogoURL:        "/assets/images/logo.svg",
			LogoDarkURL:    "/assets/images/logo-dark.svg",
			FaviconURL:     "/favicon.ico",
		},
		Company: Company{
			Name:    "Your Company Name",
			Phone:   "(555) 123-4567",
			Email:   "info@company.com",
			Address: "123 Main St, City, ST 12345",
		},
		Modules: Modules{
			{Key: "projectEstimator", Module: Module{Enabled: true, Path: "/estimator/", Name: "Project Estimator",
				Description: "Interactive tool for customers to estimate project costs and requirements."}},
			{Key: "clientPortal", Module: Module{Enabled: true, Path: "/portal/", Name: "Client Portal",
				Description: "Secure messaging system for customer communication and support."}},
			{Key: "jobManagement", Module: Module{Enabled: true, Path: "/jobs/", Name: "Job Management",
				Description: "Complete project tracking system with timelines and progress monitoring."}},
			{Key: "crm", Module: Module{Enabled: true, Path: "/crm/", Name: "CRM System",
				Description: "Customer relationship management with interaction tracking and follow-ups."}},
			{Key: "advancedAnalytics", Module: Module{Locked: true, Path: "/analytics/", Name: "Advanced Analytics",
				Description: "Comprehensive business insights, reports, and performance dashboards."}},
			{Key: "emailMarketing", Module: Module{Locked: true, Path: "/email-marketing/", Name: "Email Marketing",
				Description: "Automated email campaigns and customer engagement tools."}},
			{Key: "scheduling", Module: Module{Locked: true, Path: "/scheduling/", Name: "Scheduling & Calendar",
				Description: "Integrated calendar system for appointments and team scheduling."}},
			{Key: "invoicing", Module: Module{Locked: true, Path: "/invoicing/", Name: "Invoice & Payments",
				Description: "Automated invoicing and online payment processing system."}},
		},
		Features: Features{
			"showTestimonials": true,
			"showPricing":      true,
			"showServiceArea":  true,
			"stickyCallButton": true,
			"onlineBooking":    true,
			"emergencyService": false,
		},
		Content: Content{
			Homepage: HomepageContent{Sections: []string{"hero", "services", "testimonials"}},
		},
	}
}

// Clone returns a deep copy of c.
func (c SiteConfig) Clone() SiteConfig {
	out := c
	out.Modules = c.Modules.Clone()
	if c.Features != nil {
		out.Features = make(Features, len(c.Features))
		for k, v := range c.Features {
			out.Features[k] = v
		}
	}
	if c.Content.Homepage.Sections != nil {
		out.Content.Homepage.Sections = make([]string, len(c.Content.Homepage.Sections))
		copy(out.Content.Homepage.Sections, c.Content.Homepage.Sections)
	}
	out.Content.Homepage.LastUpdated = cloneTime(c.Content.Homepage.LastUpdated)
	out.Content.Blog.LastUpdated = cloneTime(c.Content.Blog.LastUpdated)
	out.Content.Gallery.LastUpdated = cloneTime(c.Content.Gallery.LastUpdated)
	out.Content.Reviews.LastUpdated = cloneTime(c.Content.Reviews.LastUpdated)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Equal reports whether a and b are structurally equal. Both values are
// compared through their canonical JSON encoding, so module order counts
// and feature map order does not.
func Equal(a, b SiteConfig) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
