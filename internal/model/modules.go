package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Module is one toggleable feature of the business platform.
type Module struct {
	Enabled     bool   `json:"enabled" toml:"enabled"`
	Locked      bool   `json:"locked" toml:"locked"`
	Path        string `json:"path" toml:"path" validate:"max=200"`
	Name        string `json:"name" toml:"name" validate:"max=200"`
	Description string `json:"description" toml:"description" validate:"max=1000"`
}

// NamedModule is a Module together with its key.
type NamedModule struct {
	Key string `json:"key" toml:"key" validate:"required"`
	Module
}

// Modules is the ordered module catalog. It encodes as a JSON object whose
// key order is the declaration order.
type Modules []NamedModule

// Get returns the module stored under key.
func (m Modules) Get(key string) (Module, bool) {
	for _, nm := range m {
		if nm.Key == key {
			return nm.Module, true
		}
	}
	return Module{}, false
}

// Has reports whether key is a declared module.
func (m Modules) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns the module keys in declaration order.
func (m Modules) Keys() []string {
	keys := make([]string, len(m))
	for i, nm := range m {
		keys[i] = nm.Key
	}
	return keys
}

// Clone returns a copy of m that shares no backing array.
func (m Modules) Clone() Modules {
	if m == nil {
		return nil
	}
	out := make(Modules, len(m))
	copy(out, m)
	return out
}

// InOrder returns m rearranged so the listed keys come first, in the order
// given. Keys not in m are skipped, and modules not listed keep their
// relative order after the listed ones.
func (m Modules) InOrder(keys []string) Modules {
	if len(keys) == 0 || m == nil {
		return m
	}
	out := make(Modules, 0, len(m))
	placed := make(map[string]bool, len(keys))
	for _, k := range keys {
		if placed[k] {
			continue
		}
		if mod, ok := m.Get(k); ok {
			out = append(out, NamedModule{Key: k, Module: mod})
			placed[k] = true
		}
	}
	for _, nm := range m {
		if !placed[nm.Key] {
			out = append(out, nm)
		}
	}
	return out
}

// set replaces the module under key, or appends it when key is new.
func (m Modules) set(key string, mod Module) Modules {
	for i := range m {
		if m[i].Key == key {
			m[i].Module = mod
			return m
		}
	}
	return append(m, NamedModule{Key: key, Module: mod})
}

// MarshalJSON encodes the catalog as an object in declaration order.
func (m Modules) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, nm := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(nm.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(nm.Module)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object into the catalog, keeping the key order of
// the input. Unknown module fields are rejected.
func (m *Modules) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("modules: expected object")
	}
	out := Modules{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)
		var mod Module
		if err := dec.Decode(&mod); err != nil {
			return fmt.Errorf("modules.%s: %w", key, err)
		}
		out = out.set(key, mod)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}

// ActiveModules returns the modules that are enabled and not locked, in
// declaration order.
func ActiveModules(cfg SiteConfig) []NamedModule {
	var out []NamedModule
	for _, nm := range cfg.Modules {
		if nm.Enabled && !nm.Locked {
			out = append(out, nm)
		}
	}
	return out
}

// LockedModules returns the locked modules in declaration order.
func LockedModules(cfg SiteConfig) []NamedModule {
	var out []NamedModule
	for _, nm := range cfg.Modules {
		if nm.Locked {
			out = append(out, nm)
		}
	}
	return out
}

// ToggleModule flips the enabled flag of the module under key. Locked and
// unknown modules are left alone; the returned bool reports whether the
// config changed.
func ToggleModule(cfg SiteConfig, key string) (SiteConfig, bool) {
	mod, ok := cfg.Modules.Get(key)
	if !ok || mod.Locked {
		return cfg, false
	}
	out := cfg.Clone()
	mod.Enabled = !mod.Enabled
	out.Modules = out.Modules.set(key, mod)
	return out, true
}
