package http1

import "strings"

// Handler serves one request. Returning an error closes the connection.
type Handler interface {
	Serve(r *Request) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(r *Request) error

// Serve implements Handler.
func (f HandlerFunc) Serve(r *Request) error {
	return f(r)
}

type route struct {
	path    string
	rule    AccessRule
	handler Handler
}

// routeTable is ordered so that a path is always tested before any shorter
// path that is a prefix of it.
type routeTable []route

// set replaces, removes or inserts the entry for path. It reports whether
// a new entry was added.
func (t *routeTable) set(path string, rule AccessRule, h Handler) bool {
	for i, rt := range *t {
		if rt.path != path {
			continue
		}
		if h == nil {
			*t = append((*t)[:i], (*t)[i+1:]...)
		} else {
			(*t)[i].rule = rule
			(*t)[i].handler = h
		}
		return false
	}
	if h == nil {
		return false
	}

	entry := route{path: path, rule: rule, handler: h}
	for i, rt := range *t {
		if strings.HasPrefix(path, rt.path) {
			*t = append(*t, route{})
			copy((*t)[i+1:], (*t)[i:])
			(*t)[i] = entry
			return true
		}
	}
	*t = append(*t, entry)
	return true
}

// match returns the first entry whose path prefixes path.
func (t routeTable) match(path string) (route, bool) {
	for _, rt := range t {
		if strings.HasPrefix(path, rt.path) {
			return rt, true
		}
	}
	return route{}, false
}

// paths returns the registered paths in match order.
func (t routeTable) paths() []string {
	out := make([]string, len(t))
	for i, rt := range t {
		out[i] = rt.path
	}
	return out
}

func (t routeTable) clone() routeTable {
	return append(routeTable(nil), t...)
}
