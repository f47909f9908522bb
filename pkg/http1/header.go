package http1

import (
	"strings"
)

// Header holds parsed header fields keyed by lower-case name. Repeated
// fields are joined with ", ".
type Header map[string]string

// Get returns the value of the named field, case-insensitively.
func (h Header) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Has reports whether the named field is present.
func (h Header) Has(name string) bool {
	_, ok := h[strings.ToLower(name)]
	return ok
}

// Contains reports whether the named field holds token in its
// comma-separated value list, case-insensitively.
func (h Header) Contains(name, token string) bool {
	for _, part := range strings.Split(h.Get(name), ",") {
		if strings.EqualFold(strings.TrimSpace(part), token) {
			return true
		}
	}
	return false
}

// parseHeader parses "Name: value" lines. Lines without a colon are
// skipped.
func parseHeader(block string) Header {
	h := make(Header)
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:i]))
		value := strings.TrimSpace(line[i+1:])
		if prev, ok := h[name]; ok {
			value = prev + ", " + value
		}
		h[name] = value
	}
	return h
}
