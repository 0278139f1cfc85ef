// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

func highbits(v uint32) uint16 { return uint16(v >> 16) }
func lowbits(v uint32) uint16  { return uint16(v & 0xFFFF) }

// search16 returns the index of value in a, or -(i+1) where i is the
// position value would be inserted at.
func search16(a []uint16, value uint16) int {
	// Optimize for elements and the last element.
	n := len(a)
	if n == 0 {
		return -1
	} else if a[n-1] == value {
		return n - 1
	} else if a[n-1] < value {
		return -(n + 1)
	}

	// Otherwise perform binary search for exact match.
	lo, hi := 0, n-1
	for lo+16 <= hi {
		i := int(uint((lo + hi)) >> 1)
		v := a[i]

		if v < value {
			lo = i + 1
		} else if v > value {
			hi = i - 1
		} else {
			return i
		}
	}

	// If an exact match isn't found then return a negative index.
	for ; lo <= hi; lo++ {
		v := a[lo]
		if v == value {
			return lo
		} else if v > value {
			break
		}
	}
	return -(lo + 1)
}

// lowerBound16 returns the index of the first element of a which is >= v.
// v may be outside the uint16 range.
func lowerBound16(a []uint16, v int) int {
	if v <= 0 {
		return 0
	}
	if v > 0xFFFF {
		return len(a)
	}
	i := search16(a, uint16(v))
	if i < 0 {
		return -i - 1
	}
	return i
}
