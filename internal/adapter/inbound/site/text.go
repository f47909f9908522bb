package site

import "github.com/Sentinel-Gate/wiregate/pkg/http1"

// TextHandler serves the same body to every GET.
type TextHandler struct {
	body []byte
	mime string
}

// NewTextHandler creates a TextHandler. An empty mime means text/plain.
func NewTextHandler(text, mime string) *TextHandler {
	if mime == "" {
		mime = "text/plain"
	}
	return &TextHandler{body: []byte(text), mime: mime}
}

// Serve implements http1.Handler.
func (h *TextHandler) Serve(r *http1.Request) error {
	if r.Method() != "GET" {
		return methodNotAllowed(r, "GET")
	}
	return sendFixed(r, 200, "OK", h.mime, h.body)
}
