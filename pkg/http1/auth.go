package http1

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Sentinel-Gate/wiregate/pkg/ringbuf"
	"github.com/Sentinel-Gate/wiregate/pkg/transform"
)

// BasicCredential returns the value of an Authorization or
// Proxy-Authorization header for user and password: "Basic " followed by
// base64("user:password"). The encoding runs through a Base64 stage into a
// ring buffer sink.
func BasicCredential(user, password string) (string, error) {
	buf, err := ringbuf.New(128, ringbuf.ModeQueue, 128, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMemory, err)
	}
	sink, err := transform.NewBufferSink(buf)
	if err != nil {
		return "", err
	}
	p, err := transform.NewPipeline(transform.NewBase64Encoder(), sink)
	if err != nil {
		return "", err
	}
	for _, part := range []string{user, ":", password} {
		if err := p.Feed([]byte(part)); err != nil {
			_ = p.Finalize()
			return "", fmt.Errorf("%w: %w", ErrMemory, err)
		}
	}
	if err := p.Finalize(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMemory, err)
	}
	return "Basic " + string(buf.Bytes()), nil
}

// ParseBasicCredential decodes a "Basic <base64>" header value into user
// and password.
func ParseBasicCredential(value string) (user, password string, ok bool) {
	const prefix = "basic "
	if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", "", false
	}
	raw, err := transform.DecodeBase64([]byte(strings.TrimSpace(value[len(prefix):])))
	if err != nil {
		return "", "", false
	}
	i := bytes.IndexByte(raw, ':')
	if i < 0 {
		return "", "", false
	}
	return string(raw[:i]), string(raw[i+1:]), true
}
