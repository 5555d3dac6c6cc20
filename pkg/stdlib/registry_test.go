package stdlib

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lemonberrylabs/loxwalk/pkg/types"
)

type mapDefiner map[string]types.Value

func (m mapDefiner) Define(name string, v types.Value) { m[name] = v }

func TestClock(t *testing.T) {
	r := &Registry{natives: make(map[string]*Native)}
	r.registerTime(func() time.Time { return time.Unix(1700000000, 500_000_000) })

	clock, ok := r.Lookup("clock")
	require.True(t, ok)
	assert.Equal(t, 0, clock.Arity())
	assert.Equal(t, "<native fn>", clock.String())

	v, err := clock.Call(context.Background(), nil)
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.InDelta(t, 1700000000.5, n, 1e-3)
}

func TestDefaultClockIsCurrentTime(t *testing.T) {
	clock, ok := NewRegistry().Lookup("clock")
	require.True(t, ok)

	before := float64(time.Now().Unix())
	v, err := clock.Call(context.Background(), nil)
	require.NoError(t, err)
	n, ok := v.AsNumber()
	require.True(t, ok)
	assert.GreaterOrEqual(t, n, before)
}

func TestInstall(t *testing.T) {
	r := NewRegistry()
	r.Register("answer", 0, func(context.Context, []types.Value) (types.Value, error) {
		return types.NewNumber(42), nil
	})
	assert.Equal(t, []string{"answer", "clock"}, r.Names())

	env := mapDefiner{}
	r.Install(env)
	require.Len(t, env, 2)

	fn, ok := env["answer"].AsCallable()
	require.True(t, ok)
	v, err := fn.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "42", v.String())
}
