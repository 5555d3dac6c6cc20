package stdlib

import (
	"context"
	"time"

	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

var defaultClock = time.Now

// registerTime registers clock().
func (r *Registry) registerTime(now func() time.Time) {
	r.Register("clock", 0, func(_ context.Context, _ []types.Value) (types.Value, error) {
		return types.NewNumber(float64(now().UnixNano()) / 1e9), nil
	})
}
