package machine

import (
	"context"
	"io"

	"github.com/germanamz/nestbridge/pkg/sli"
)

// Serve speaks the sli line protocol on r and w until r is exhausted or ctx
// is cancelled.
func (m *Machine) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return sli.Serve(ctx, m, r, w)
}
