// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import (
	"fmt"
	"math/bits"
)

// Container types. A Container's typeID selects which of its payloads is
// live; the other two are always nil.
const (
	ContainerNil    byte = iota // no container
	ContainerArray              // sorted []uint16
	ContainerBitmap             // 1024 x uint64
	ContainerRun                // sorted []Interval16
)

const (
	// bitmapN is the number of words in a bitmap container.
	bitmapN = (1 << 16) / 64

	// maxContainerN is the largest possible cardinality of a container.
	maxContainerN = 1 << 16

	// Serialized sizes, used to pick the smallest encoding.
	runCountHeaderSize = 2
	interval16Size     = 4
	bitmapSize         = bitmapN * 8
)

// containerTypeNames is indexed by typeID.
var containerTypeNames = [...]string{"nil", "array", "bitmap", "run"}

// Container represents a Container for uint16 integers.
//
// These are used for storing the low bits of numbers in a 32-bit set. The
// high bits are stored in the Container's key, which is tracked by the
// container index. Integers in a Container are encoded in one of three ways:
// an array of values for sparse containers, a 65536-bit bitmap for dense
// ones, or a list of runs when the values cluster. Any type can hold any
// set of values; the choice only affects size and speed, and conversions
// between them never change what the container holds.
//
// n is always exact.
type Container struct {
	typeID byte
	n      int32
	array  []uint16
	bitmap []uint64
	runs   []Interval16
	p      *policy
}

// Interval16 is an inclusive range of values in a run container.
type Interval16 struct {
	Start uint16
	Last  uint16
}

// runlen returns the count of integers in the interval.
func (iv Interval16) runlen() int32 {
	return 1 + int32(iv.Last) - int32(iv.Start)
}

func (iv Interval16) String() string {
	return fmt.Sprintf("[%d, %d]", iv.Start, iv.Last)
}

// NewContainer returns an empty array container.
func NewContainer() *Container {
	return NewContainerArray(nil)
}

// NewContainerArray returns an array container holding a copy of set,
// which must be sorted and free of duplicates.
func NewContainerArray(set []uint16) *Container {
	c := &Container{typeID: ContainerArray}
	c.array = append(make([]uint16, 0, len(set)), set...)
	c.n = int32(len(set))
	return c
}

// NewContainerBitmap returns a bitmap container holding a copy of bitmap.
// A short bitmap is padded with zeroes. If n is negative, the count is
// computed from the bitmap; otherwise n is trusted.
func NewContainerBitmap(n int, bitmap []uint64) *Container {
	c := &Container{typeID: ContainerBitmap, bitmap: make([]uint64, bitmapN)}
	if len(bitmap) > bitmapN {
		panic("illegal bitmap length")
	}
	copy(c.bitmap, bitmap)
	if n < 0 {
		c.bitmapRepair()
	} else {
		c.n = int32(n)
		if roaringParanoia {
			c.CheckN()
		}
	}
	return c
}

// NewContainerRun returns a run container holding the values of set. The
// intervals must be sorted and disjoint; adjacent ones are merged, so the
// runs of a container are always maximal.
func NewContainerRun(set []Interval16) *Container {
	c := &Container{typeID: ContainerRun}
	c.runs = make([]Interval16, 0, len(set))
	for _, iv := range set {
		if k := len(c.runs); k > 0 && int(c.runs[k-1].Last)+1 == int(iv.Start) {
			c.runs[k-1].Last = iv.Last
		} else {
			c.runs = append(c.runs, iv)
		}
		c.n += iv.runlen()
	}
	return c
}

func (c *Container) String() string {
	if c == nil {
		return "<nil container>"
	}
	switch c.typeID {
	case ContainerArray:
		return fmt.Sprintf("<array container, N=%d>", c.n)
	case ContainerBitmap:
		return fmt.Sprintf("<bitmap container, N=%d>", c.n)
	case ContainerRun:
		return fmt.Sprintf("<run container, N=%d, len %dx interval>", c.n, len(c.runs))
	default:
		return fmt.Sprintf("<unknown %d container, N=%d>", c.typeID, c.n)
	}
}

// N returns the number of values in the container.
func (c *Container) N() int32 {
	if c == nil {
		return 0
	}
	return c.n
}

func (c *Container) typ() byte {
	if c == nil {
		return ContainerNil
	}
	return c.typeID
}

// TypeName returns "array", "bitmap" or "run".
func (c *Container) TypeName() string {
	return containerTypeNames[c.typ()]
}

func (c *Container) isArray() bool  { return c.typeID == ContainerArray }
func (c *Container) isBitmap() bool { return c.typeID == ContainerBitmap }
func (c *Container) isRun() bool    { return c.typeID == ContainerRun }

func (c *Container) policy() *policy {
	if c.p == nil {
		return defaultPolicy
	}
	return c.p
}

// Clone returns a copy of c which shares no storage with it.
func (c *Container) Clone() *Container {
	if c == nil {
		return nil
	}
	other := &Container{typeID: c.typeID, n: c.n, p: c.p}
	switch c.typeID {
	case ContainerArray:
		other.array = append([]uint16(nil), c.array...)
	case ContainerBitmap:
		other.bitmap = append([]uint64(nil), c.bitmap...)
	case ContainerRun:
		other.runs = append([]Interval16(nil), c.runs...)
	}
	return other
}

// Add adds v to the container, and reports whether it was absent.
func (c *Container) Add(v uint16) bool {
	var added bool
	switch c.typeID {
	case ContainerArray:
		added = c.arrayAdd(v)
	case ContainerBitmap:
		added = c.bitmapAdd(v)
	case ContainerRun:
		added = c.runAdd(v)
	}
	if added {
		c.n++
		c.afterAdd()
	}
	return added
}

// Remove removes v from the container, and reports whether it was present.
func (c *Container) Remove(v uint16) bool {
	var removed bool
	switch c.typeID {
	case ContainerArray:
		removed = c.arrayRemove(v)
	case ContainerBitmap:
		removed = c.bitmapRemove(v)
	case ContainerRun:
		removed = c.runRemove(v)
	}
	if removed {
		c.n--
		c.afterRemove()
	}
	return removed
}

// afterAdd moves the container to a denser encoding once it has outgrown
// its current one.
func (c *Container) afterAdd() {
	p := c.policy()
	switch c.typeID {
	case ContainerArray:
		if c.n > p.arrayMaxSize {
			c.arrayToBitmap()
		}
	case ContainerRun:
		if int32(len(c.runs)) > p.runMaxSize {
			c.runToDense()
		}
	}
}

// afterRemove moves the container to a sparser encoding once it fits.
func (c *Container) afterRemove() {
	p := c.policy()
	switch c.typeID {
	case ContainerBitmap:
		if c.n <= p.arrayMaxSize {
			c.bitmapToArray()
		}
	case ContainerRun:
		if int32(len(c.runs)) > p.runMaxSize {
			c.runToDense()
		}
	}
}

// runToDense converts a run container to whichever of array or bitmap the
// policy calls for at its current cardinality.
func (c *Container) runToDense() {
	if c.n <= c.policy().arrayMaxSize {
		c.runToArray()
	} else {
		c.runToBitmap()
	}
}

// Contains reports whether v is in the container.
func (c *Container) Contains(v uint16) bool {
	if c == nil {
		return false
	}
	switch c.typeID {
	case ContainerArray:
		return c.arrayContains(v)
	case ContainerBitmap:
		return c.bitmapContains(v)
	case ContainerRun:
		return c.runContains(v)
	}
	return false
}

// Rank returns the number of values in the container which are <= v.
func (c *Container) Rank(v uint16) int32 {
	if c == nil {
		return 0
	}
	switch c.typeID {
	case ContainerArray:
		return c.arrayRank(v)
	case ContainerBitmap:
		return c.bitmapRank(v)
	case ContainerRun:
		return c.runRank(v)
	}
	return 0
}

// Select returns the i-th smallest value (counting from 0) in the
// container. ok is false if i >= N().
func (c *Container) Select(i int32) (v uint16, ok bool) {
	if c == nil || i < 0 || i >= c.n {
		return 0, false
	}
	switch c.typeID {
	case ContainerArray:
		return c.array[i], true
	case ContainerBitmap:
		return c.bitmapSelect(i), true
	case ContainerRun:
		return c.runSelect(i), true
	}
	return 0, false
}

// Min returns the smallest value. The container must not be empty.
func (c *Container) Min() uint16 {
	switch c.typeID {
	case ContainerArray:
		return c.array[0]
	case ContainerBitmap:
		for i, w := range c.bitmap {
			if w != 0 {
				return uint16(i*64 + bits.TrailingZeros64(w))
			}
		}
	case ContainerRun:
		return c.runs[0].Start
	}
	return 0
}

// Max returns the largest value. The container must not be empty.
func (c *Container) Max() uint16 {
	switch c.typeID {
	case ContainerArray:
		return c.array[len(c.array)-1]
	case ContainerBitmap:
		for i := len(c.bitmap) - 1; i >= 0; i-- {
			if w := c.bitmap[i]; w != 0 {
				return uint16(i*64 + 63 - bits.LeadingZeros64(w))
			}
		}
	case ContainerRun:
		return c.runs[len(c.runs)-1].Last
	}
	return 0
}

// nextAbsent returns the smallest value >= v which is not in the
// container, or maxContainerN if every value from v up is present.
func (c *Container) nextAbsent(v int) int {
	switch c.typeID {
	case ContainerArray:
		return c.arrayNextAbsent(v)
	case ContainerBitmap:
		return c.bitmapNextAbsent(v)
	case ContainerRun:
		return c.runNextAbsent(v)
	}
	return v
}

// nextValue returns the smallest value >= v in the container, or -1.
func (c *Container) nextValue(v int) int {
	if c.n == 0 || v > int(c.Max()) {
		return -1
	}
	cur := c.cursor()
	cur.advance(uint16(v))
	if !cur.hasNext() {
		return -1
	}
	return int(cur.peek())
}

// countRange counts the values in [start, end).
func (c *Container) countRange(start, end int) int32 {
	if start >= end {
		return 0
	}
	return c.rankBefore(end) - c.rankBefore(start)
}

// rankBefore counts the values < v, for v in [0, maxContainerN].
func (c *Container) rankBefore(v int) int32 {
	if v <= 0 {
		return 0
	}
	return c.Rank(uint16(v - 1))
}

// addRange adds every value in [lo, hi) and returns the number added.
func (c *Container) addRange(lo, hi int) int32 {
	if lo >= hi {
		return 0
	}
	before := c.n
	switch c.typeID {
	case ContainerArray:
		c.arrayAddRange(lo, hi)
	case ContainerBitmap:
		c.bitmapAddRange(lo, hi)
	case ContainerRun:
		c.runAddRange(lo, hi)
	}
	c.afterAdd()
	if roaringParanoia {
		c.CheckN()
	}
	return c.n - before
}

// removeRange removes every value in [lo, hi) and returns the number
// removed. The container may change type.
func (c *Container) removeRange(lo, hi int) int32 {
	if lo >= hi || c.n == 0 {
		return 0
	}
	before := c.n
	switch c.typeID {
	case ContainerArray:
		c.arrayRemoveRange(lo, hi)
	case ContainerBitmap:
		c.bitmapRemoveRange(lo, hi)
	case ContainerRun:
		c.runRemoveRange(lo, hi)
	}
	c.afterRemove()
	if roaringParanoia {
		c.CheckN()
	}
	return before - c.n
}

// countRuns returns the number of maximal runs in the container.
func (c *Container) countRuns() int32 {
	switch c.typeID {
	case ContainerArray:
		return c.arrayCountRuns()
	case ContainerBitmap:
		return c.bitmapCountRuns()
	case ContainerRun:
		return int32(len(c.runs))
	}
	return 0
}

// size returns the encoded size in bytes of the container as it is.
func (c *Container) size() int {
	switch c.typeID {
	case ContainerArray:
		return 2 * len(c.array)
	case ContainerBitmap:
		return bitmapSize
	case ContainerRun:
		return runCountHeaderSize + interval16Size*len(c.runs)
	}
	return 0
}

// optimalType returns the type with the smallest encoding for the
// container's contents. Run encoding has to be strictly smaller to win.
func (c *Container) optimalType() byte {
	dense := ContainerBitmap
	denseSize := bitmapSize
	if c.n <= c.policy().arrayMaxSize {
		dense, denseSize = ContainerArray, 2*int(c.n)
	}
	runs := c.countRuns()
	if runs <= c.policy().runMaxSize && runCountHeaderSize+interval16Size*int(runs) < denseSize {
		return ContainerRun
	}
	return dense
}

// optimize converts the container to its smallest encoding, and reports
// whether the type changed.
func (c *Container) optimize() bool {
	want := c.optimalType()
	if want == c.typeID {
		return false
	}
	c.convert(want)
	return true
}

// convert re-encodes the container as typ without changing its contents.
func (c *Container) convert(typ byte) {
	switch c.typeID {
	case ContainerArray:
		switch typ {
		case ContainerBitmap:
			c.arrayToBitmap()
		case ContainerRun:
			c.arrayToRun()
		}
	case ContainerBitmap:
		switch typ {
		case ContainerArray:
			c.bitmapToArray()
		case ContainerRun:
			c.bitmapToRun()
		}
	case ContainerRun:
		switch typ {
		case ContainerArray:
			c.runToArray()
		case ContainerBitmap:
			c.runToBitmap()
		}
	}
}

// setPayload swaps in a new representation, records the conversion, and
// clears the payloads which are no longer live.
func (c *Container) setPayload(typ byte, array []uint16, bitmap []uint64, runs []Interval16) {
	countConversion(c.typeID, typ)
	c.typeID, c.array, c.bitmap, c.runs = typ, array, bitmap, runs
	if roaringParanoia {
		c.CheckN()
	}
}

// equal reports whether c and other hold the same values, whatever their
// encodings.
func (c *Container) equal(other *Container) bool {
	if c.N() != other.N() {
		return false
	}
	if c.N() == 0 {
		return true
	}
	if c.typeID == other.typeID {
		switch c.typeID {
		case ContainerArray:
			return equalSlices(c.array, other.array)
		case ContainerBitmap:
			return equalSlices(c.bitmap, other.bitmap)
		case ContainerRun:
			return equalSlices(c.runs, other.runs)
		}
	}
	a, b := c.cursor(), other.cursor()
	for a.hasNext() {
		if !b.hasNext() || a.next() != b.next() {
			return false
		}
	}
	return !b.hasNext()
}

func equalSlices[T comparable](a, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// check performs a consistency check on the container.
func (c *Container) check() error {
	var a ErrorList
	switch c.typeID {
	case ContainerArray:
		if int32(len(c.array)) != c.n {
			a.Append(fmt.Errorf("array count mismatch: count=%d, n=%d", len(c.array), c.n))
		}
		for i := 1; i < len(c.array); i++ {
			if c.array[i-1] >= c.array[i] {
				a.Append(fmt.Errorf("array not strictly increasing at %d: %d >= %d", i, c.array[i-1], c.array[i]))
				break
			}
		}
		if c.bitmap != nil || c.runs != nil {
			a.Append(fmt.Errorf("array container has stray payload"))
		}
	case ContainerBitmap:
		if len(c.bitmap) != bitmapN {
			a.Append(fmt.Errorf("bitmap length mismatch: %d", len(c.bitmap)))
		} else if n := c.bitmapCount(); n != c.n {
			a.Append(fmt.Errorf("bitmap count mismatch: count=%d, n=%d", n, c.n))
		}
		if c.array != nil || c.runs != nil {
			a.Append(fmt.Errorf("bitmap container has stray payload"))
		}
	case ContainerRun:
		var n int32
		for i, iv := range c.runs {
			if iv.Start > iv.Last {
				a.Append(fmt.Errorf("run %d inverted: %s", i, iv))
			}
			if i > 0 && int(c.runs[i-1].Last)+1 >= int(iv.Start) {
				a.Append(fmt.Errorf("runs %d and %d not separated: %s %s", i-1, i, c.runs[i-1], iv))
			}
			n += iv.runlen()
		}
		if n != c.n {
			a.Append(fmt.Errorf("run count mismatch: count=%d, n=%d", n, c.n))
		}
		if c.array != nil || c.bitmap != nil {
			a.Append(fmt.Errorf("run container has stray payload"))
		}
	default:
		a.Append(fmt.Errorf("unknown container type %d", c.typeID))
	}
	if len(a) == 0 {
		return nil
	}
	return a
}

// ContainerInfo represents a point-in-time snapshot of container stats.
type ContainerInfo struct {
	Key  uint16 // container key
	Type string // array, bitmap, or run
	N    int32  // number of values
	Size int    // encoded size in bytes
	Runs int32  // number of maximal runs
}

func (c *Container) info() ContainerInfo {
	return ContainerInfo{
		Type: c.TypeName(),
		N:    c.n,
		Size: c.size(),
		Runs: c.countRuns(),
	}
}
