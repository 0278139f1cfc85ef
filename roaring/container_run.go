// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import "sort"

// binSearchRuns returns the index of the run containing v, and true, when v is contained;
// or the index of the next run starting after v, and false, when v is not contained.
func binSearchRuns(v uint16, a []Interval16) (int, bool) {
	i := sort.Search(len(a), func(i int) bool { return a[i].Last >= v })
	if i < len(a) {
		return i, v >= a[i].Start
	}
	return i, false
}

func (c *Container) runContains(v uint16) bool {
	_, found := binSearchRuns(v, c.runs)
	return found
}

func (c *Container) runAdd(v uint16) bool {
	i, found := binSearchRuns(v, c.runs)
	if found {
		return false
	}
	// joinsPrev: v extends the run before i; joinsNext: v extends run i.
	joinsPrev := i > 0 && int(c.runs[i-1].Last)+1 == int(v)
	joinsNext := i < len(c.runs) && int(v)+1 == int(c.runs[i].Start)
	switch {
	case joinsPrev && joinsNext:
		c.runs[i-1].Last = c.runs[i].Last
		c.runs = append(c.runs[:i], c.runs[i+1:]...)
	case joinsPrev:
		c.runs[i-1].Last = v
	case joinsNext:
		c.runs[i].Start = v
	default:
		c.runs = append(c.runs, Interval16{})
		copy(c.runs[i+1:], c.runs[i:])
		c.runs[i] = Interval16{Start: v, Last: v}
	}
	return true
}

// runRemove removes v from a run container, and returns true if v was removed.
func (c *Container) runRemove(v uint16) bool {
	i, contains := binSearchRuns(v, c.runs)
	if !contains {
		return false
	}
	iv := c.runs[i]
	switch {
	case v == iv.Start && v == iv.Last:
		c.runs = append(c.runs[:i], c.runs[i+1:]...)
	case v == iv.Last:
		c.runs[i].Last--
	case v == iv.Start:
		c.runs[i].Start++
	default:
		c.runs[i].Last = v - 1
		c.runs = append(c.runs, Interval16{})
		copy(c.runs[i+2:], c.runs[i+1:])
		c.runs[i+1] = Interval16{Start: v + 1, Last: iv.Last}
	}
	return true
}

func (c *Container) runRank(v uint16) int32 {
	i, found := binSearchRuns(v, c.runs)
	var n int32
	for _, iv := range c.runs[:i] {
		n += iv.runlen()
	}
	if found {
		n += int32(v-c.runs[i].Start) + 1
	}
	return n
}

func (c *Container) runSelect(i int32) uint16 {
	for _, iv := range c.runs {
		l := iv.runlen()
		if i < l {
			return iv.Start + uint16(i)
		}
		i -= l
	}
	panic("roaring: run select past end of container")
}

func (c *Container) runNextAbsent(v int) int {
	if v >= maxContainerN {
		return v
	}
	i, found := binSearchRuns(uint16(v), c.runs)
	if !found {
		return v
	}
	next := int(c.runs[i].Last) + 1
	for i++; i < len(c.runs) && int(c.runs[i].Start) == next; i++ {
		next = int(c.runs[i].Last) + 1
	}
	return next
}

// runAddRange merges [lo, hi) into the runs, absorbing every run it
// overlaps or touches.
func (c *Container) runAddRange(lo, hi int) {
	start, last := lo, hi-1
	// i: first run which ends at or after start-1; j: first run which
	// starts after last+1.
	i := sort.Search(len(c.runs), func(k int) bool { return int(c.runs[k].Last)+1 >= start })
	j := sort.Search(len(c.runs), func(k int) bool { return int(c.runs[k].Start) > last+1 })
	if i < j {
		if int(c.runs[i].Start) < start {
			start = int(c.runs[i].Start)
		}
		if int(c.runs[j-1].Last) > last {
			last = int(c.runs[j-1].Last)
		}
	}
	merged := Interval16{Start: uint16(start), Last: uint16(last)}
	var removed int32
	for _, iv := range c.runs[i:j] {
		removed += iv.runlen()
	}
	runs := make([]Interval16, 0, len(c.runs)-(j-i)+1)
	runs = append(runs, c.runs[:i]...)
	runs = append(runs, merged)
	runs = append(runs, c.runs[j:]...)
	c.runs = runs
	c.n += merged.runlen() - removed
}

// runRemoveRange cuts [lo, hi) out of the runs, splitting a run which
// straddles the whole range.
func (c *Container) runRemoveRange(lo, hi int) {
	last := hi - 1
	runs := make([]Interval16, 0, len(c.runs)+1)
	var n int32
	for _, iv := range c.runs {
		if int(iv.Last) < lo || int(iv.Start) > last {
			runs = append(runs, iv)
			n += iv.runlen()
			continue
		}
		if int(iv.Start) < lo {
			head := Interval16{Start: iv.Start, Last: uint16(lo - 1)}
			runs = append(runs, head)
			n += head.runlen()
		}
		if int(iv.Last) > last {
			tail := Interval16{Start: uint16(last + 1), Last: iv.Last}
			runs = append(runs, tail)
			n += tail.runlen()
		}
	}
	c.runs = runs
	c.n = n
}

// runToArray converts from RLE format to array format.
func (c *Container) runToArray() {
	array := make([]uint16, 0, c.n)
	for _, r := range c.runs {
		for v := int(r.Start); v <= int(r.Last); v++ {
			array = append(array, uint16(v))
		}
	}
	c.setPayload(ContainerArray, array, nil, nil)
}

// runToBitmap converts from RLE format to bitmap format.
func (c *Container) runToBitmap() {
	bitmap := make([]uint64, bitmapN)
	b := (*[bitmapN]uint64)(bitmap)
	for _, r := range c.runs {
		splatRun(b, r)
	}
	c.setPayload(ContainerBitmap, nil, bitmap, nil)
}
