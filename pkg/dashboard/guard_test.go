package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionGuard(t *testing.T) {
	g := NewActionGuard()
	clock := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	first, err := g.Begin("make_payment:p1")
	require.NoError(t, err)
	assert.Equal(t, "make_payment:p1", first.Key)

	_, err = g.Begin("make_payment:p1")
	assert.True(t, errors.Is(err, ErrActionInFlight))

	second, err := g.Begin("confirm_withdraw:w1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	inflight := g.InFlight()
	require.Len(t, inflight, 2)
	assert.Equal(t, "make_payment:p1", inflight[0].Key, "oldest first")

	assert.True(t, g.Finish("make_payment:p1"))
	assert.False(t, g.Finish("make_payment:p1"))

	_, err = g.Begin("make_payment:p1")
	assert.NoError(t, err, "key is free again once finished")
}
