package site

import (
	"fmt"
	"io"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// EchoHandler answers GET with the request target and POST with the
// request body.
type EchoHandler struct{}

// NewEchoHandler creates an EchoHandler.
func NewEchoHandler() EchoHandler { return EchoHandler{} }

// Serve implements http1.Handler.
func (EchoHandler) Serve(r *http1.Request) error {
	switch r.Method() {
	case "GET":
		target := r.Path()
		if r.Query() != "" {
			target += "?" + r.Query()
		}
		return sendFixed(r, 200, "OK", "text/plain", []byte(target+"\n"))
	case "POST":
		return echoBody(r)
	}
	return methodNotAllowed(r, "GET, POST")
}

func echoBody(r *http1.Request) error {
	mime := r.Header("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}
	n := r.ContentLength()
	if err := r.SendInit(200, "OK", mime); err != nil {
		return err
	}
	if err := r.SendHead(fmt.Sprintf("Content-Length: %d", n)); err != nil {
		return err
	}
	if n == 0 {
		return r.Send(nil)
	}
	copied, err := io.CopyBuffer(r, r, make([]byte, 8*1024))
	if err != nil {
		return err
	}
	if copied != n {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func sendFixed(r *http1.Request, code int, reason, mime string, body []byte) error {
	if err := r.SendInit(code, reason, mime); err != nil {
		return err
	}
	if err := r.SendHead(fmt.Sprintf("Content-Length: %d", len(body))); err != nil {
		return err
	}
	return r.Send(body)
}
