package memutils

import (
	cerrors "github.com/cockroachdb/errors"
)

type Number interface {
	~int | ~uint | ~uint32 | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T Number](value T, alignment T) T {
	return (value + alignment - 1) &^ (alignment - 1)
}

func AlignDown[T Number](value T, alignment T) T {
	return value &^ (alignment - 1)
}

// canonicalBits is the virtual address width above which the hardware
// requires sign extension: bit 47 must be replicated through bit 63 for
// any address handed to the GPU on platforms with 48-bit addressing.
const canonicalBits = 48

// ToCanonical sign-extends a 48-bit GPU virtual address into its
// canonical 64-bit form.
func ToCanonical(address uint64) uint64 {
	return uint64(int64(address<<(64-canonicalBits)) >> (64 - canonicalBits))
}

// FromCanonical strips the sign extension from a canonical address,
// recovering the raw 48-bit offset.
func FromCanonical(address uint64) uint64 {
	return address & ((uint64(1) << canonicalBits) - 1)
}
