package bitwise_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reldb/reldb/pkg/bitwise"
)

func TestSetClearIsSet(t *testing.T) {
	t.Parallel()

	var mask uint64
	assert.False(t, bitwise.IsSet(mask, 0))

	mask = bitwise.Set(mask, 0)
	mask = bitwise.Set(mask, 5)
	mask = bitwise.Set(mask, 63)
	assert.True(t, bitwise.IsSet(mask, 0))
	assert.True(t, bitwise.IsSet(mask, 5))
	assert.True(t, bitwise.IsSet(mask, 63))
	assert.False(t, bitwise.IsSet(mask, 1))
	assert.Equal(t, 3, bitwise.Count(mask))

	mask = bitwise.Clear(mask, 5)
	assert.False(t, bitwise.IsSet(mask, 5))
	assert.Equal(t, 2, bitwise.Count(mask))
}
