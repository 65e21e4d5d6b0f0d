package config

import (
	"fmt"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

// siteDefaults is the on-disk shape of a deployment defaults file:
//
//	[theme]
//	primary_color = "#0055aa"
//
//	[company]
//	name = "Acme Roofing"
//
//	[features]
//	emergencyService = true
//
//	[[modules]]
//	key = "crm"
//	enabled = true
//	path = "/crm/"
//	name = "CRM System"
type siteDefaults struct {
	Theme            model.Theme         `toml:"theme"`
	Company          model.Company       `toml:"company"`
	Features         map[string]bool     `toml:"features"`
	Modules          []model.NamedModule `toml:"modules"`
	HomepageSections []string            `toml:"homepage_sections"`
}

// LoadSiteDefaults returns the built-in site configuration overlaid with
// the deployment defaults file at path. Non-empty theme and company values
// override, feature entries override or extend the feature set, and a
// [[modules]] list replaces the module catalog. An empty path returns the
// built-in defaults unchanged.
func LoadSiteDefaults(path string) (model.SiteConfig, error) {
	cfg := model.Default()
	if path == "" {
		return cfg, nil
	}

	var file siteDefaults
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return cfg, fmt.Errorf("reading site defaults %s: %w", path, err)
	}

	if err := mergo.Merge(&cfg.Theme, file.Theme, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merging theme defaults: %w", err)
	}
	if err := mergo.Merge(&cfg.Company, file.Company, mergo.WithOverride); err != nil {
		return cfg, fmt.Errorf("merging company defaults: %w", err)
	}
	for k, v := range file.Features {
		cfg.Features[k] = v
	}
	if len(file.Modules) > 0 {
		cfg.Modules = model.Modules(file.Modules)
	}
	if len(file.HomepageSections) > 0 {
		cfg.Content.Homepage.Sections = file.HomepageSections
	}

	if err := model.Validate(cfg); err != nil {
		return cfg, fmt.Errorf("site defaults %s: %w", path, err)
	}
	return cfg, nil
}
