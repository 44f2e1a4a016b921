package bitwise

import (
	"math/bits"
)

// Set returns the mask with bit i set.
func Set(mask uint64, i int) uint64 {
	return mask | (1 << uint(i))
}

// Clear returns the mask with bit i cleared.
func Clear(mask uint64, i int) uint64 {
	return mask &^ (1 << uint(i))
}

// IsSet reports whether bit i is set in the mask.
func IsSet(mask uint64, i int) bool {
	return mask&(1<<uint(i)) != 0
}

// Count returns the number of set bits in the mask.
func Count(mask uint64) int {
	return bits.OnesCount64(mask)
}
