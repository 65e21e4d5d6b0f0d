// Package idgen generates the short random identifiers and shared secrets
// handed out by the webhook registry.
package idgen

import (
	"fmt"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Format is a prefixed random token shape.
type Format struct {
	Prefix string
	Length int // random characters after Prefix
}

var (
	// Subscriber is the shape of webhook subscriber ids, e.g. "sub-4fQz81xKpa".
	Subscriber = Format{Prefix: "sub-", Length: 10}
	// Secret is the shape of generated webhook secrets.
	Secret = Format{Prefix: "whsec_", Length: 32}
)

// New returns a fresh random token in this format.
func (f Format) New() (string, error) {
	id, err := nanoid.Generate(alphanumeric, f.Length)
	if err != nil {
		return "", fmt.Errorf("generate %sid: %w", f.Prefix, err)
	}
	return f.Prefix + id, nil
}

// Match reports whether s could have been produced by New.
func (f Format) Match(s string) bool {
	rest, ok := strings.CutPrefix(s, f.Prefix)
	if !ok || len(rest) != f.Length {
		return false
	}
	return strings.Trim(rest, alphanumeric) == ""
}

func NewSubscriberID() (string, error) { return Subscriber.New() }

func IsSubscriberID(s string) bool { return Subscriber.Match(s) }

// NewSecret returns a random shared secret for a subscriber that did not
// bring its own.
func NewSecret() (string, error) { return Secret.New() }
