// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import "math/bits"

const maxBitmap = uint64(0xFFFFFFFFFFFFFFFF)

func (c *Container) bitmapAdd(v uint16) bool {
	if c.bitmapContains(v) {
		return false
	}
	c.bitmap[v/64] |= uint64(1) << (v % 64)
	return true
}

func (c *Container) bitmapRemove(v uint16) bool {
	if !c.bitmapContains(v) {
		return false
	}
	c.bitmap[v/64] &^= uint64(1) << (v % 64)
	return true
}

func (c *Container) bitmapContains(v uint16) bool {
	return c.bitmap[v/64]&(uint64(1)<<(v%64)) != 0
}

// bitmapCount counts the set bits.
func (c *Container) bitmapCount() (n int32) {
	for _, w := range c.bitmap {
		n += int32(bits.OnesCount64(w))
	}
	return n
}

// bitmapRepair recomputes n from the bitmap.
func (c *Container) bitmapRepair() {
	c.n = c.bitmapCount()
}

func (c *Container) bitmapRank(v uint16) int32 {
	var n int
	w := int(v / 64)
	for _, word := range c.bitmap[:w] {
		n += bits.OnesCount64(word)
	}
	n += bits.OnesCount64(c.bitmap[w] & (maxBitmap >> (63 - v%64)))
	return int32(n)
}

// bitmapSelect skips whole words by popcount, then scans the word which
// holds the i-th bit.
func (c *Container) bitmapSelect(i int32) uint16 {
	for w, word := range c.bitmap {
		cnt := int32(bits.OnesCount64(word))
		if i >= cnt {
			i -= cnt
			continue
		}
		for ; i > 0; i-- {
			word &= word - 1
		}
		return uint16(w*64 + bits.TrailingZeros64(word))
	}
	panic("roaring: bitmap select past end of container")
}

func (c *Container) bitmapNextAbsent(v int) int {
	if v >= maxContainerN {
		return v
	}
	w := v / 64
	x := ^c.bitmap[w] & (maxBitmap << (uint(v) % 64))
	for {
		if x != 0 {
			return w*64 + bits.TrailingZeros64(x)
		}
		w++
		if w >= bitmapN {
			return maxContainerN
		}
		x = ^c.bitmap[w]
	}
}

func (c *Container) bitmapCountRuns() (r int32) {
	for i := 0; i < bitmapN-1; i++ {
		v, v1 := c.bitmap[i], c.bitmap[i+1]
		r += int32(bits.OnesCount64((v<<1)&^v) + int((v>>63)&^v1))
	}
	vl := c.bitmap[bitmapN-1]
	r += int32(bits.OnesCount64((vl<<1)&^vl) + int(vl>>63))
	return r
}

// bitmapSetRange sets the bits in [lo, hi).
func (c *Container) bitmapSetRange(lo, hi int) {
	splatRun((*[bitmapN]uint64)(c.bitmap), Interval16{Start: uint16(lo), Last: uint16(hi - 1)})
}

func (c *Container) bitmapAddRange(lo, hi int) {
	added := int32(hi-lo) - c.countRange(lo, hi)
	c.bitmapSetRange(lo, hi)
	c.n += added
}

// bitmapRemoveRange clears the bits in [lo, hi).
func (c *Container) bitmapRemoveRange(lo, hi int) {
	c.n -= c.countRange(lo, hi)
	first, last := lo/64, (hi-1)/64
	lowMask := maxBitmap << (uint(lo) % 64)
	highMask := maxBitmap >> (63 - uint(hi-1)%64)
	if first == last {
		c.bitmap[first] &^= lowMask & highMask
		return
	}
	c.bitmap[first] &^= lowMask
	for w := first + 1; w < last; w++ {
		c.bitmap[w] = 0
	}
	c.bitmap[last] &^= highMask
}

// fillerBitmap is a bitmap full of filler.
var fillerBitmap = func() (a [bitmapN]uint64) {
	for i := range a {
		a[i] = maxBitmap
	}
	return a
}()

// splatRun sets every bit of from in into.
func splatRun(into *[bitmapN]uint64, from Interval16) {
	// Handle the case where the start and end fall within the same word.
	if from.Start/64 == from.Last/64 {
		highMask := maxBitmap >> (63 - (from.Last % 64))
		lowMask := maxBitmap << (from.Start % 64)
		into[from.Start/64] |= highMask & lowMask
		return
	}

	fillStart, fillEnd := from.Start/64, from.Last/64

	if from.Start%64 != 0 {
		into[from.Start/64] |= maxBitmap << (from.Start % 64)
		fillStart++
	}
	if from.Last%64 != 63 {
		into[from.Last/64] |= maxBitmap >> (63 - (from.Last % 64))
		fillEnd--
	}

	// fillEnd may now be below fillStart when the run only spans
	// the two partial words.
	if fillStart <= fillEnd {
		copy(into[fillStart:fillEnd+1], fillerBitmap[:])
	}
}

// bitmapToArray converts from bitmap format to array format.
func (c *Container) bitmapToArray() {
	array := make([]uint16, 0, c.n)
	for i, word := range c.bitmap {
		for word != 0 {
			array = append(array, uint16(i*64+bits.TrailingZeros64(word)))
			word &= word - 1
		}
	}
	c.setPayload(ContainerArray, array, nil, nil)
}

// bitmapToRun converts from bitmap format to RLE format.
func (c *Container) bitmapToRun() {
	runs := make([]Interval16, 0, c.bitmapCountRuns())
	if c.n == 0 {
		c.setPayload(ContainerRun, nil, nil, runs)
		return
	}

	current := c.bitmap[0]
	var i int
	for {
		// skip while empty
		for current == 0 && i < bitmapN-1 {
			i++
			current = c.bitmap[i]
		}
		if current == 0 {
			break
		}
		start := i*64 + bits.TrailingZeros64(current)

		// pad LSBs with 1s
		current |= current - 1

		// find next 0
		for current == maxBitmap && i < bitmapN-1 {
			i++
			current = c.bitmap[i]
		}
		if current == maxBitmap {
			runs = append(runs, Interval16{Start: uint16(start), Last: maxContainerN - 1})
			break
		}
		last := i*64 + bits.TrailingZeros64(^current)
		runs = append(runs, Interval16{Start: uint16(start), Last: uint16(last - 1)})

		// pad LSBs with 0s
		current &= current + 1
	}
	c.setPayload(ContainerRun, nil, nil, runs)
}
