package media

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/cozy/engine/core"
)

type Expectation struct {
	Timescale uint32
	Width     uint16
	Height    uint16
	Codec     Codec
}

// Verify checks the probed container against exp. All mismatches are
// reported together and wrap core.ErrSampleMismatch.
func (v *VideoInfo) Verify(exp Expectation) error {
	var errs []error
	if v.Timescale != exp.Timescale {
		errs = append(errs, fmt.Errorf("timescale %d, want %d", v.Timescale, exp.Timescale))
	}
	if v.Spec.Width != exp.Width || v.Spec.Height != exp.Height {
		errs = append(errs, fmt.Errorf("size %dx%d, want %dx%d", v.Spec.Width, v.Spec.Height, exp.Width, exp.Height))
	}
	if v.Spec.Codec != exp.Codec {
		errs = append(errs, fmt.Errorf("codec %s, want %s", v.Spec.Codec, exp.Codec))
	}
	if exp.Codec == CodecAVC && v.Spec.Codec == CodecAVC && v.AVC.Empty() {
		errs = append(errs, errors.New("avcC decoder configuration is empty"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrSampleMismatch, errors.Join(errs...))
}
