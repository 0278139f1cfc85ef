// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

// sliceContainers is the container index of a Bitmap: keys in strictly
// increasing order, with containers[i] holding the low bits of every value
// whose high 16 bits are keys[i].
type sliceContainers struct {
	keys       []uint16
	containers []*Container
}

func newSliceContainers() *sliceContainers {
	return &sliceContainers{}
}

func (sc *sliceContainers) Get(key uint16) *Container {
	i := search16(sc.keys, key)
	if i < 0 {
		return nil
	}
	return sc.containers[i]
}

// Put stores c under key, replacing any container already there.
func (sc *sliceContainers) Put(key uint16, c *Container) {
	i := search16(sc.keys, key)

	// If index is negative then there's not an exact match
	// and a container needs to be added.
	if i < 0 {
		sc.insertAt(key, c, -i-1)
	} else {
		sc.containers[i] = c
	}
}

func (sc *sliceContainers) Remove(key uint16) {
	i := search16(sc.keys, key)
	if i < 0 {
		return
	}
	sc.removeAt(i)
}

func (sc *sliceContainers) removeAt(i int) {
	sc.keys = append(sc.keys[:i], sc.keys[i+1:]...)
	copy(sc.containers[i:], sc.containers[i+1:])
	sc.containers[len(sc.containers)-1] = nil
	sc.containers = sc.containers[:len(sc.containers)-1]
}

func (sc *sliceContainers) insertAt(key uint16, c *Container, i int) {
	sc.keys = append(sc.keys, 0)
	copy(sc.keys[i+1:], sc.keys[i:])
	sc.keys[i] = key

	sc.containers = append(sc.containers, nil)
	copy(sc.containers[i+1:], sc.containers[i:])
	sc.containers[i] = c
}

// GetOrCreate returns the container for key, adding an empty array
// container governed by p if there is none.
func (sc *sliceContainers) GetOrCreate(key uint16, p *policy) *Container {
	// Appending past the last key is the common case for ordered loads.
	if n := len(sc.keys); n > 0 && sc.keys[n-1] == key {
		return sc.containers[n-1]
	}
	i := search16(sc.keys, key)
	if i < 0 {
		c := NewContainer()
		c.p = p
		sc.insertAt(key, c, -i-1)
		return c
	}
	return sc.containers[i]
}

func (sc *sliceContainers) Clone() *sliceContainers {
	other := newSliceContainers()
	other.keys = make([]uint16, len(sc.keys))
	other.containers = make([]*Container, len(sc.containers))
	copy(other.keys, sc.keys)
	for i, c := range sc.containers {
		other.containers[i] = c.Clone()
	}
	return other
}

func (sc *sliceContainers) Last() (key uint16, c *Container) {
	if len(sc.keys) == 0 {
		return 0, nil
	}
	return sc.keys[len(sc.keys)-1], sc.containers[len(sc.keys)-1]
}

func (sc *sliceContainers) Size() int {
	return len(sc.keys)
}

func (sc *sliceContainers) Count() uint64 {
	n := uint64(0)
	for i := range sc.containers {
		n += uint64(sc.containers[i].n)
	}
	return n
}

func (sc *sliceContainers) Reset() {
	sc.keys = sc.keys[:0]
	for i := range sc.containers {
		sc.containers[i] = nil
	}
	sc.containers = sc.containers[:0]
}

func (sc *sliceContainers) keyAt(i int) uint16 { return sc.keys[i] }
func (sc *sliceContainers) containerAt(i int) *Container { return sc.containers[i] }

// seek returns the position of the first key >= key, and whether that key
// is an exact match.
func (sc *sliceContainers) seek(key uint16) (int, bool) {
	i := search16(sc.keys, key)
	found := true
	if i < 0 {
		found = false
		i = -i - 1
	}
	return i, found
}

// seekFrom is seek restricted to positions >= from.
func (sc *sliceContainers) seekFrom(from int, key uint16) int {
	return from + lowerBound16(sc.keys[from:], int(key))
}

// Iterator returns an iterator over the containers whose keys are >= key.
func (sc *sliceContainers) Iterator(key uint16) (citer ContainerIterator, found bool) {
	i, found := sc.seek(key)
	return &sliceIterator{e: sc, i: i}, found
}

// ContainerIterator walks (key, container) pairs in ascending key order.
type ContainerIterator interface {
	Next() bool
	Value() (uint16, *Container)
}

type sliceIterator struct {
	e     *sliceContainers
	i     int
	key   uint16
	value *Container
}

func (si *sliceIterator) Next() bool {
	if si.e == nil || si.i > len(si.e.keys)-1 {
		return false
	}
	si.key = si.e.keys[si.i]
	si.value = si.e.containers[si.i]
	si.i++

	return true
}

func (si *sliceIterator) Value() (uint16, *Container) {
	return si.key, si.value
}
