// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// seededBitmap builds bitmaps container by container, with each container
// forced into a chosen encoding and filled with values from a fixed seed.
// It records every value it inserts.
type seededBitmap struct {
	rng  *rand.Rand
	b    *Bitmap
	vals []uint32
}

func newSeededBitmap(seed int64) *seededBitmap {
	return &seededBitmap{rng: rand.New(rand.NewSource(seed)), b: NewBitmap()}
}

func (s *seededBitmap) record(key uint16, low int) {
	s.vals = append(s.vals, uint32(key)<<16|uint32(low))
}

// withArrayAt puts a sparse array container at key.
func (s *seededBitmap) withArrayAt(key uint16) *seededBitmap {
	n := 1 + s.rng.Intn(ArrayMaxSize)
	set := make([]uint16, n)
	for i, v := range s.rng.Perm(maxContainerN)[:n] {
		set[i] = uint16(v)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	for _, v := range set {
		s.record(key, int(v))
	}
	s.b.containers.Put(key, NewContainerArray(set))
	return s
}

// withRunAt puts a run container of a few hundred short runs at key.
func (s *seededBitmap) withRunAt(key uint16) *seededBitmap {
	var runs []Interval16
	for start := s.rng.Intn(64); start < maxContainerN; {
		last := start + s.rng.Intn(64)
		if last >= maxContainerN {
			last = maxContainerN - 1
		}
		runs = append(runs, Interval16{Start: uint16(start), Last: uint16(last)})
		for v := start; v <= last; v++ {
			s.record(key, v)
		}
		start = last + 2 + s.rng.Intn(128)
	}
	s.b.containers.Put(key, NewContainerRun(runs))
	return s
}

// withBitmapAt puts a bitmap container with about half its bits set at key.
func (s *seededBitmap) withBitmapAt(key uint16) *seededBitmap {
	words := make([]uint64, bitmapN)
	for i := range words {
		words[i] = s.rng.Uint64()
		for bit := 0; bit < 64; bit++ {
			if words[i]&(1<<uint(bit)) != 0 {
				s.record(key, i*64+bit)
			}
		}
	}
	s.b.containers.Put(key, NewContainerBitmap(-1, words))
	return s
}

func (s *seededBitmap) build() *Bitmap {
	return s.b
}

// fixture returns the bitmap along with the values inserted into it.
func (s *seededBitmap) fixture(name string) fixture {
	vals := append([]uint32(nil), s.vals...)
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return fixture{name: name, b: s.b, values: vals}
}

// rangeValues returns the values in [lo, hi) accepted by keep.
func rangeValues(lo, hi uint32, keep func(uint32) bool) []uint32 {
	var out []uint32
	for v := lo; v < hi; v++ {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// rangeWhere returns a bitmap of the values in [lo, hi) accepted by keep.
func rangeWhere(lo, hi uint32, keep func(uint32) bool) *Bitmap {
	return NewBitmap(rangeValues(lo, hi, keep)...)
}

func all(uint32) bool { return true }

type fixture struct {
	name   string
	b      *Bitmap
	values []uint32
	large  bool
}

// evensFixture holds every even value in [1<<10, 1<<22), as bitmap
// containers.
func evensFixture() fixture {
	const lo, hi = 1 << 10, 1 << 22
	b := NewBitmap()
	for key := 0; key < hi>>16; key++ {
		words := make([]uint64, bitmapN)
		for w := range words {
			if key > 0 || w >= lo/64 {
				words[w] = 0x5555555555555555
			}
		}
		b.containers.Put(uint16(key), NewContainerBitmap(-1, words))
	}
	return fixture{name: "evens", b: b, values: rangeValues(lo, hi, func(v uint32) bool { return v&1 == 0 }), large: true}
}

// alternate256Fixture holds [1<<10, 1<<21) in alternating blocks of 256
// present and 256 absent values, as run containers.
func alternate256Fixture() fixture {
	const lo, hi = 1 << 10, 1 << 21
	b := NewBitmap()
	for key := 0; key < hi>>16; key++ {
		var runs []Interval16
		for start := 0; start < maxContainerN; start += 512 {
			if key == 0 && start < lo {
				continue
			}
			runs = append(runs, Interval16{Start: uint16(start), Last: uint16(start + 255)})
		}
		b.containers.Put(uint16(key), NewContainerRun(runs))
	}
	return fixture{name: "alternate-256", b: b, values: rangeValues(lo, hi, func(v uint32) bool { return (v>>8)&1 == 0 }), large: true}
}

func plainFixture(name string, values []uint32) fixture {
	return fixture{name: name, b: NewBitmap(values...), values: values}
}

var (
	fixturesOnce sync.Once
	fixtures     []fixture
)

// iterationFixtures mixes every container encoding at keys near both ends
// of the key space, along with a few plainly built bitmaps. The fixtures
// are built once and shared, so tests must not modify them.
func iterationFixtures(t *testing.T) []fixture {
	t.Helper()
	fixturesOnce.Do(func() {
		const hiKey = (1 << 15) | (1 << 14)
		fixtures = []fixture{
			newSeededBitmap(1).withArrayAt(0).withArrayAt(2).withArrayAt(4).withArrayAt(hiKey).fixture("arrays"),
			newSeededBitmap(2).withRunAt(0).withRunAt(2).withRunAt(4).withRunAt(hiKey).fixture("runs"),
			newSeededBitmap(3).withBitmapAt(0).withRunAt(2).withBitmapAt(4).withBitmapAt(hiKey).fixture("bitmap-run-bitmap-bitmap"),
			newSeededBitmap(4).withArrayAt(0).withBitmapAt(2).withRunAt(4).withBitmapAt(hiKey).fixture("array-bitmap-run-bitmap"),
			newSeededBitmap(5).withRunAt(0).withArrayAt(2).withBitmapAt(4).withRunAt(hiKey).fixture("run-array-bitmap-run"),
			newSeededBitmap(6).withBitmapAt(0).withRunAt(2).withArrayAt(4).withBitmapAt(hiKey).fixture("bitmap-run-array-bitmap"),
			newSeededBitmap(7).withArrayAt(0).withBitmapAt(2).withRunAt(4).withArrayAt(hiKey).fixture("array-bitmap-run-array"),
			newSeededBitmap(8).withBitmapAt(0).withArrayAt(2).withBitmapAt(4).withRunAt(hiKey).fixture("bitmap-array-bitmap-run"),
			newSeededBitmap(9).
				withRunAt((1 << 15) | (1 << 11)).
				withBitmapAt((1 << 15) | (1 << 12)).
				withArrayAt((1 << 15) | (1 << 13)).
				withBitmapAt(hiKey).fixture("high-keys"),
			evensFixture(),
			alternate256Fixture(),
			plainFixture("0-127", rangeValues(0, 127, all)),
			plainFixture("0-1024", rangeValues(0, 1024, all)),
			plainFixture("two-keys", append(rangeValues(0, 256, all), rangeValues(1<<16, 1<<16|256, all)...)),
			plainFixture("empty", nil),
		}
	})
	out := make([]fixture, 0, len(fixtures))
	for _, f := range fixtures {
		if f.large && testing.Short() {
			continue
		}
		if err := f.b.Check(); err != nil {
			t.Fatalf("fixture %s: %v", f.name, err)
		}
		if uint64(len(f.values)) != f.b.Count() {
			t.Fatalf("fixture %s: %d values inserted, bitmap counts %d", f.name, len(f.values), f.b.Count())
		}
		out = append(out, f)
	}
	return out
}

// drainBatches empties itr using a buffer of the given size, checking the
// values against want as it goes, and returns how many it consumed.
func drainBatches(t *testing.T, itr *BatchIterator, size int, want []uint32) int {
	t.Helper()
	buf := make([]uint32, size)
	consumed := 0
	for itr.HasNext() {
		n := itr.NextBatch(buf)
		if n == 0 {
			t.Fatalf("NextBatch returned 0 after HasNext")
		}
		if consumed+n > len(want) {
			t.Fatalf("too many values: got at least %d, want %d", consumed+n, len(want))
		}
		for i, v := range buf[:n] {
			if v != want[consumed+i] {
				t.Fatalf("batch at %d mismatch (-want +got):\n%s", consumed, cmp.Diff(want[consumed:consumed+n], buf[:n]))
			}
		}
		consumed += n
	}
	if n := itr.NextBatch(buf); n != 0 {
		t.Fatalf("NextBatch after exhaustion returned %d", n)
	}
	return consumed
}

// containerVariants returns the same set of values encoded as an array, a
// bitmap and a run container.
func containerVariants(set []uint16) map[string]*Container {
	a := NewContainerArray(set)
	b := NewContainerArray(set)
	b.arrayToBitmap()
	r := NewContainerArray(set)
	r.arrayToRun()
	return map[string]*Container{"array": a, "bitmap": b, "run": r}
}

func mustCheck(t *testing.T, b *Bitmap) {
	t.Helper()
	if err := b.Check(); err != nil {
		t.Fatalf("check: %v", err)
	}
}

func describe(b *Bitmap) string {
	return fmt.Sprintf("%d values in %d containers", b.Count(), b.containers.Size())
}
