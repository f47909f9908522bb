package service

import (
	"context"
	"errors"

	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

// Recorders fans each entry out to every recorder in order. All
// recorders are called even when one fails.
type Recorders []http1.AccessRecorder

// Record implements http1.AccessRecorder.
func (rs Recorders) Record(ctx context.Context, e http1.AccessEntry) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
