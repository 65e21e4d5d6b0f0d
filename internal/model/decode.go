package model

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var timeType = reflect.TypeOf(time.Time{})

// jsonKind names the JSON value kind that decodes into t.
func jsonKind(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return "string"
	}
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	}
	return "value"
}

// rawKind names the JSON value kind of raw.
func rawKind(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "value"
	}
	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	}
	if bytes.ContainsAny(raw, ".eE") {
		return "number"
	}
	return "integer"
}

func kindMatches(want, got string) bool {
	return want == got || (want == "number" && got == "integer")
}

// checkShape walks raw against t and records unknown fields and kind
// mismatches under dotted paths ("modules.crm.enabled",
// "content.homepage.sections.0"). null is accepted anywhere.
func checkShape(ve *ValidationError, path string, raw json.RawMessage, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	got := rawKind(raw)
	if got == "null" {
		return
	}
	want := jsonKind(t)
	if !kindMatches(want, got) {
		ve.add(pathOrBody(path), "must be of type "+want)
		return
	}
	if t == timeType {
		return
	}

	switch t.Kind() {
	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			ve.add(pathOrBody(path), "must be of type object")
			return
		}
		known := jsonFields(t)
		for _, key := range sortedKeys(fields) {
			ft, ok := lookupField(known, key)
			if !ok {
				ve.add(joinPath(path, key), "unknown field")
				continue
			}
			checkShape(ve, joinPath(path, key), fields[key], ft)
		}
	case reflect.Map:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			ve.add(pathOrBody(path), "must be of type object")
			return
		}
		for _, key := range sortedKeys(entries) {
			checkShape(ve, joinPath(path, key), entries[key], t.Elem())
		}
	case reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			ve.add(pathOrBody(path), "must be of type array")
			return
		}
		for i, item := range items {
			checkShape(ve, joinPath(path, strconv.Itoa(i)), item, t.Elem())
		}
	}
}

// jsonFields maps the JSON names of t's exported fields to their types.
func jsonFields(t reflect.Type) map[string]reflect.Type {
	fields := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		fields[name] = f.Type
	}
	return fields
}

// lookupField matches key the way encoding/json does: exact first, then
// case-insensitively.
func lookupField(fields map[string]reflect.Type, key string) (reflect.Type, bool) {
	if t, ok := fields[key]; ok {
		return t, true
	}
	for name, t := range fields {
		if strings.EqualFold(name, key) {
			return t, true
		}
	}
	return nil, false
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func pathOrBody(path string) string {
	if path == "" {
		return "body"
	}
	return path
}
