// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

func (c *Container) arrayAdd(v uint16) bool {
	// Optimize appending to the end of an array container.
	if n := len(c.array); n == 0 || c.array[n-1] < v {
		c.array = append(c.array, v)
		return true
	}

	// Find index of the integer in the container. Exit if it already exists.
	i := search16(c.array, v)
	if i >= 0 {
		return false
	}

	// Otherwise insert into array.
	i = -i - 1
	c.array = append(c.array, 0)
	copy(c.array[i+1:], c.array[i:])
	c.array[i] = v
	return true
}

func (c *Container) arrayRemove(v uint16) bool {
	i := search16(c.array, v)
	if i < 0 {
		return false
	}
	c.array = append(c.array[:i], c.array[i+1:]...)
	return true
}

func (c *Container) arrayContains(v uint16) bool {
	return search16(c.array, v) >= 0
}

func (c *Container) arrayRank(v uint16) int32 {
	i := search16(c.array, v)
	if i >= 0 {
		return int32(i) + 1
	}
	return int32(-i - 1)
}

func (c *Container) arrayNextAbsent(v int) int {
	i := lowerBound16(c.array, v)
	for ; i < len(c.array) && int(c.array[i]) == v; i++ {
		v++
	}
	return v
}

func (c *Container) arrayCountRuns() (r int32) {
	prev := -2
	for _, v := range c.array {
		if prev+1 != int(v) {
			r++
		}
		prev = int(v)
	}
	return r
}

// arrayAddRange adds [lo, hi), switching to a bitmap when the result
// would no longer fit in an array.
func (c *Container) arrayAddRange(lo, hi int) {
	i := lowerBound16(c.array, lo)
	j := lowerBound16(c.array, hi)
	n := int32(len(c.array)-(j-i)) + int32(hi-lo)
	if n > c.policy().arrayMaxSize {
		c.arrayToBitmap()
		c.bitmapAddRange(lo, hi)
		return
	}
	out := make([]uint16, 0, n)
	out = append(out, c.array[:i]...)
	for v := lo; v < hi; v++ {
		out = append(out, uint16(v))
	}
	out = append(out, c.array[j:]...)
	c.array = out
	c.n = n
}

func (c *Container) arrayRemoveRange(lo, hi int) {
	i := lowerBound16(c.array, lo)
	j := lowerBound16(c.array, hi)
	c.array = append(c.array[:i], c.array[j:]...)
	c.n = int32(len(c.array))
}

// arrayToBitmap converts from array format to bitmap format.
func (c *Container) arrayToBitmap() {
	bitmap := make([]uint64, bitmapN)
	for _, v := range c.array {
		bitmap[v/64] |= uint64(1) << (v % 64)
	}
	c.setPayload(ContainerBitmap, nil, bitmap, nil)
}

// arrayToRun converts from array format to RLE format.
func (c *Container) arrayToRun() {
	runs := make([]Interval16, 0, c.arrayCountRuns())
	if len(c.array) > 0 {
		start := c.array[0]
		for i, v := range c.array[1:] {
			// if current-previous > 1, one run ends and another begins
			if v-c.array[i] > 1 {
				runs = append(runs, Interval16{Start: start, Last: c.array[i]})
				start = v
			}
		}
		runs = append(runs, Interval16{Start: start, Last: c.array[len(c.array)-1]})
	}
	c.setPayload(ContainerRun, nil, nil, runs)
}
