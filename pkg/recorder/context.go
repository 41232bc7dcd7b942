package recorder

import (
	"context"
	"fmt"

	"github.com/authzed/controller-idioms/typedctx"
)

// ctxRecorder is the recorder constructors register nodes with
var ctxRecorder = typedctx.NewKey[*Recorder]()

// FromContext returns the started recorder carried by ctx
func FromContext(ctx context.Context) (*Recorder, error) {
	r, ok := ctxRecorder.Value(ctx)
	if !ok || r == nil {
		return nil, ErrNoActiveRecorder
	}
	if state := r.State(); state != StateStarted {
		return nil, fmt.Errorf("%w: recorder %q is %s", ErrNoActiveRecorder, r.opts.Name, state)
	}
	return r, nil
}

// WithRecorder returns a context carrying r without starting it. Start
// already does this; it is useful for handing a recorder to code that runs
// under a different parent context.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return ctxRecorder.WithValue(ctx, r)
}
