package server

import "strings"

// kindFilter selects events by kind for stream clients. Each entry is an
// exact kind or a dot-separated pattern where "*" matches one segment and
// a trailing ">" matches one or more. Empty allows everything.
type kindFilter []string

// parseKindFilter reads the comma separated ?events= query value.
func parseKindFilter(q string) kindFilter {
	var f kindFilter
	for _, k := range strings.Split(q, ",") {
		if k = strings.TrimSpace(k); k != "" {
			f = append(f, k)
		}
	}
	return f
}

func (f kindFilter) allows(kind string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if matchTopicPattern(p, kind) {
			return true
		}
	}
	return false
}

func matchTopicPattern(pattern, topic string) bool {
	for {
		p, pRest, pMore := strings.Cut(pattern, ".")
		if p == ">" {
			return topic != ""
		}
		t, tRest, tMore := strings.Cut(topic, ".")
		if topic == "" || (p != "*" && p != t) {
			return false
		}
		if !pMore || !tMore {
			return pMore == tMore
		}
		pattern, topic = pRest, tRest
	}
}
