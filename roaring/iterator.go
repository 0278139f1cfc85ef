// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import (
	"math/bits"
	"sort"
)

// DefaultBatchSize is the buffer length AsIntIterator allocates when it is
// handed an empty buffer.
const DefaultBatchSize = 256

const errModified = "roaring: bitmap modified during iteration"

// containerCursor is a position inside one container. What j, k and w mean
// depends on the container type:
//
//	array:  j indexes array
//	run:    j indexes runs, k is the offset within runs[j]
//	bitmap: j indexes bitmap, w holds the not yet visited bits of word j
type containerCursor struct {
	c *Container
	j int
	k int32
	w uint64
}

// cursor returns a cursor positioned at the smallest value in c.
func (c *Container) cursor() containerCursor {
	cur := containerCursor{c: c}
	if c.isBitmap() {
		cur.w = c.bitmap[0]
	}
	return cur
}

func (cur *containerCursor) hasNext() bool {
	c := cur.c
	switch c.typeID {
	case ContainerArray:
		return cur.j < len(c.array)
	case ContainerRun:
		return cur.j < len(c.runs)
	case ContainerBitmap:
		for cur.w == 0 {
			if cur.j >= bitmapN-1 {
				cur.j = bitmapN
				return false
			}
			cur.j++
			cur.w = c.bitmap[cur.j]
		}
		return true
	}
	return false
}

// peek returns the value under the cursor. hasNext must have returned true.
func (cur *containerCursor) peek() uint16 {
	c := cur.c
	switch c.typeID {
	case ContainerArray:
		return c.array[cur.j]
	case ContainerRun:
		return c.runs[cur.j].Start + uint16(cur.k)
	case ContainerBitmap:
		return uint16(cur.j*64 + bits.TrailingZeros64(cur.w))
	}
	return 0
}

// next returns the value under the cursor and steps past it. hasNext must
// have returned true.
func (cur *containerCursor) next() uint16 {
	v := cur.peek()
	c := cur.c
	switch c.typeID {
	case ContainerArray:
		cur.j++
	case ContainerRun:
		cur.k++
		if cur.k >= c.runs[cur.j].runlen() {
			cur.j++
			cur.k = 0
		}
	case ContainerBitmap:
		cur.w &= cur.w - 1
	}
	return v
}

// advance moves the cursor to the first value >= v. It never moves
// backwards and never visits the values it skips.
func (cur *containerCursor) advance(v uint16) {
	c := cur.c
	switch c.typeID {
	case ContainerArray:
		if cur.j < len(c.array) {
			cur.j += lowerBound16(c.array[cur.j:], int(v))
		}
	case ContainerRun:
		runs := c.runs[cur.j:]
		i := cur.j + sort.Search(len(runs), func(x int) bool { return runs[x].Last >= v })
		if i != cur.j {
			cur.j, cur.k = i, 0
		}
		if cur.j < len(c.runs) {
			if off := int32(v) - int32(c.runs[cur.j].Start); off > cur.k {
				cur.k = off
			}
		}
	case ContainerBitmap:
		w := int(v / 64)
		if w < cur.j {
			return
		}
		if w > cur.j {
			cur.j = w
			cur.w = c.bitmap[w]
		}
		cur.w &= maxBitmap << (v % 64)
	}
}

// fill writes up to len(buf) values, each or'd with the high bits hs, and
// returns how many it wrote.
func (cur *containerCursor) fill(hs uint32, buf []uint32) (n int) {
	c := cur.c
	switch c.typeID {
	case ContainerArray:
		for ; n < len(buf) && cur.j < len(c.array); n++ {
			buf[n] = hs | uint32(c.array[cur.j])
			cur.j++
		}
	case ContainerRun:
		for n < len(buf) && cur.j < len(c.runs) {
			iv := c.runs[cur.j]
			v := int32(iv.Start) + cur.k
			for ; v <= int32(iv.Last) && n < len(buf); v++ {
				buf[n] = hs | uint32(v)
				n++
			}
			if v > int32(iv.Last) {
				cur.j++
				cur.k = 0
			} else {
				cur.k = v - int32(iv.Start)
			}
		}
	case ContainerBitmap:
		for n < len(buf) && cur.hasNext() {
			w := cur.w
			base := hs | uint32(cur.j*64)
			for ; w != 0 && n < len(buf); n++ {
				buf[n] = base + uint32(bits.TrailingZeros64(w))
				w &= w - 1
			}
			cur.w = w
		}
	}
	return n
}

// iterState is the position shared by the scalar and batch iterators: an
// index into the bitmap's containers and a cursor inside the container
// there.
type iterState struct {
	b   *Bitmap
	gen uint64
	i   int
	hs  uint32
	cur containerCursor
}

func newIterState(b *Bitmap) iterState {
	s := iterState{b: b, gen: b.gen, i: -1}
	s.enter(0)
	return s
}

func (s *iterState) checkGen() {
	if s.gen != s.b.gen {
		panic(errModified)
	}
}

// enter positions the state at the start of the container at index i.
func (s *iterState) enter(i int) {
	s.i = i
	if i >= s.b.containers.Size() {
		s.i = s.b.containers.Size()
		s.cur = containerCursor{}
		return
	}
	s.hs = uint32(s.b.containers.keyAt(i)) << 16
	s.cur = s.b.containers.containerAt(i).cursor()
}

func (s *iterState) exhausted() bool { return s.i >= s.b.containers.Size() }

// settle moves past exhausted containers and reports whether a value
// remains.
func (s *iterState) settle() bool {
	for !s.exhausted() {
		if s.cur.hasNext() {
			return true
		}
		s.enter(s.i + 1)
	}
	return false
}

// seek moves to the first value >= target. Whole containers below target's
// key are skipped with a binary search over the keys.
func (s *iterState) seek(target uint32) {
	if s.exhausted() {
		return
	}
	key := highbits(target)
	if key > s.b.containers.keyAt(s.i) {
		i := s.b.containers.seekFrom(s.i, key)
		seekCounter(seekSkipContainer).Inc()
		s.enter(i)
		if s.exhausted() {
			seekCounter(seekExhausted).Inc()
			return
		}
	}
	if s.b.containers.keyAt(s.i) == key {
		seekCounter(seekIntraContainer).Inc()
		s.cur.advance(lowbits(target))
	}
}

// BatchIterator decodes a Bitmap's values in ascending order into
// caller-supplied buffers.
type BatchIterator struct {
	s iterState
}

// BatchIterator returns a batch iterator positioned at the smallest value.
func (b *Bitmap) BatchIterator() *BatchIterator {
	return &BatchIterator{s: newIterState(b)}
}

// HasNext reports whether NextBatch would return any values.
func (it *BatchIterator) HasNext() bool {
	it.s.checkGen()
	return it.s.settle()
}

// NextBatch fills buf with the next values in ascending order, crossing
// container boundaries as needed, and returns the number written. It
// returns 0 only when the iterator is exhausted or buf is empty.
func (it *BatchIterator) NextBatch(buf []uint32) int {
	it.s.checkGen()
	n := 0
	for n < len(buf) && it.s.settle() {
		n += it.s.cur.fill(it.s.hs, buf[n:])
	}
	return n
}

// AdvanceIfNeeded moves the iterator so the next value returned is the
// first one >= target. It does nothing if that is already the case.
func (it *BatchIterator) AdvanceIfNeeded(target uint32) {
	it.s.checkGen()
	it.s.seek(target)
}

// Clone returns an independent iterator at the same position.
func (it *BatchIterator) Clone() *BatchIterator {
	return &BatchIterator{s: it.s}
}

// AsIntIterator wraps the batch iterator as a scalar one which refills buf
// whenever it runs dry. The batch iterator must not be used directly
// afterwards.
func (it *BatchIterator) AsIntIterator(buf []uint32) *BatchIntIterator {
	if len(buf) == 0 {
		buf = make([]uint32, DefaultBatchSize)
	}
	return &BatchIntIterator{src: it, buf: buf}
}

// BatchIntIterator adapts a BatchIterator to one-value-at-a-time use.
type BatchIntIterator struct {
	src  *BatchIterator
	buf  []uint32
	i, n int
}

func (it *BatchIntIterator) HasNext() bool {
	if it.i < it.n {
		return true
	}
	it.n = it.src.NextBatch(it.buf)
	it.i = 0
	return it.n > 0
}

// Next returns the next value. HasNext must have returned true.
func (it *BatchIntIterator) Next() uint32 {
	v := it.buf[it.i]
	it.i++
	return v
}

// PeekNext returns the next value without moving past it. HasNext must
// have returned true.
func (it *BatchIntIterator) PeekNext() uint32 {
	return it.buf[it.i]
}

// AdvanceIfNeeded moves the iterator so the next value returned is the
// first one >= target. Buffered values below target are dropped; once the
// buffer is used up the seek is passed to the batch iterator.
func (it *BatchIntIterator) AdvanceIfNeeded(target uint32) {
	it.src.s.checkGen()
	for it.i < it.n && it.buf[it.i] < target {
		it.i++
	}
	if it.i < it.n {
		return
	}
	it.src.AdvanceIfNeeded(target)
}

// IntIterator walks a Bitmap one value at a time.
type IntIterator struct {
	s iterState
}

// Iterator returns a scalar iterator positioned at the smallest value.
func (b *Bitmap) Iterator() *IntIterator {
	return &IntIterator{s: newIterState(b)}
}

func (it *IntIterator) HasNext() bool {
	it.s.checkGen()
	return it.s.settle()
}

// Next returns the next value and moves past it. HasNext must have
// returned true.
func (it *IntIterator) Next() uint32 {
	it.s.checkGen()
	it.s.settle()
	return it.s.hs | uint32(it.s.cur.next())
}

// PeekNext returns the next value without moving past it. HasNext must
// have returned true.
func (it *IntIterator) PeekNext() uint32 {
	it.s.checkGen()
	it.s.settle()
	return it.s.hs | uint32(it.s.cur.peek())
}

// AdvanceIfNeeded moves the iterator so the next value returned is the
// first one >= target.
func (it *IntIterator) AdvanceIfNeeded(target uint32) {
	it.s.checkGen()
	it.s.seek(target)
}
