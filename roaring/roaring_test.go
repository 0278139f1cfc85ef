// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package roaring

import (
	"bytes"
	"math/rand"
	"strings"
	"testing"
	"testing/quick"

	oracle "github.com/RoaringBitmap/roaring/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/molecula/roaring32/errors"
	"github.com/molecula/roaring32/logger"
)

// pairedBitmaps builds the same random values into a Bitmap and into a
// reference implementation.
func pairedBitmaps(seed int64) (*Bitmap, *oracle.Bitmap) {
	rng := rand.New(rand.NewSource(seed))
	b, ref := NewBitmap(), oracle.New()
	add := func(v uint32) {
		b.DirectAdd(v)
		ref.Add(v)
	}
	// sparse values spread over the whole space
	for i := 0; i < 2000; i++ {
		add(rng.Uint32())
	}
	// a dense key
	for i := 0; i < 20000; i++ {
		add(3<<16 | uint32(rng.Intn(maxContainerN)))
	}
	// runs, including a full key and a run crossing a key boundary
	_ = b.AddRange(7<<16, 8<<16)
	ref.AddRange(7<<16, 8<<16)
	_ = b.AddRange(9<<16-100, 9<<16+100)
	ref.AddRange(9<<16-100, 9<<16+100)
	return b, ref
}

func TestBitmap_AgainstReference(t *testing.T) {
	for _, optimize := range []bool{false, true} {
		b, ref := pairedBitmaps(11)
		if optimize {
			b.Optimize()
		}
		mustCheck(t, b)
		require.Equal(t, ref.GetCardinality(), b.Count())
		if diff := cmp.Diff(ref.ToArray(), b.Slice()); diff != "" {
			t.Fatalf("values (-want +got):\n%s", diff)
		}

		rng := rand.New(rand.NewSource(12))
		probes := append(ref.ToArray()[:500], 0, 7<<16, 8<<16-1, 8<<16, 9<<16, 0xFFFFFFFF)
		for i := 0; i < 2000; i++ {
			probes = append(probes, rng.Uint32(), 3<<16|uint32(rng.Intn(maxContainerN)))
		}
		for _, v := range probes {
			if b.Contains(v) != ref.Contains(v) {
				t.Fatalf("Contains(%d) disagrees", v)
			}
			if got, want := b.Rank(v), ref.Rank(v); got != want {
				t.Fatalf("Rank(%d): got %d, want %d", v, got, want)
			}
			if got, want := b.NextAbsentValue(v), nextAbsentByScan(ref, v); got != want {
				t.Fatalf("NextAbsentValue(%d): got %d, want %d", v, got, want)
			}
		}
		card := ref.GetCardinality()
		for i := uint64(0); i < card; i += 1 + uint64(rng.Intn(97)) {
			got, err := b.Select(i)
			require.NoError(t, err)
			want, err := ref.Select(uint32(i))
			require.NoError(t, err)
			if got != want {
				t.Fatalf("Select(%d): got %d, want %d", i, got, want)
			}
		}
		_, err := b.Select(card)
		assert.True(t, errors.Is(err, ErrOutOfRange), "%v", err)

		first, err := b.First()
		require.NoError(t, err)
		assert.Equal(t, ref.Minimum(), first)
		last, err := b.Last()
		require.NoError(t, err)
		assert.Equal(t, ref.Maximum(), last)
	}
}

func nextAbsentByScan(ref *oracle.Bitmap, v uint32) uint64 {
	for x := uint64(v); x < MaxValue; x++ {
		if !ref.Contains(uint32(x)) {
			return x
		}
	}
	return MaxValue
}

func TestBitmap_NextAbsentValue(t *testing.T) {
	b := NewBitmap()
	assert.Equal(t, uint64(5), b.NextAbsentValue(5))

	require.NoError(t, b.AddRange(10, 3<<16))
	assert.Equal(t, uint64(9), b.NextAbsentValue(9))
	assert.Equal(t, uint64(3<<16), b.NextAbsentValue(10))
	assert.Equal(t, uint64(3<<16), b.NextAbsentValue(1<<16))

	// Everything from the start of the top key up is present.
	require.NoError(t, b.AddRange(0xFFFF<<16, MaxValue))
	assert.Equal(t, MaxValue, b.NextAbsentValue(0xFFFF<<16))
	assert.Equal(t, MaxValue, b.NextAbsentValue(0xFFFFFFFF))
	b.Remove(0xFFFFFFFF)
	assert.Equal(t, uint64(0xFFFFFFFF), b.NextAbsentValue(0xFFFF<<16))
}

func TestBitmap_NextValue(t *testing.T) {
	b := NewBitmap(5, 1<<16+3, 9<<16)
	for _, tc := range []struct {
		from uint32
		want uint32
		ok   bool
	}{
		{0, 5, true},
		{5, 5, true},
		{6, 1<<16 + 3, true},
		{1<<16 + 4, 9 << 16, true},
		{9<<16 + 1, 0, false},
	} {
		v, ok := b.NextValue(tc.from)
		assert.Equal(t, tc.ok, ok, "NextValue(%d)", tc.from)
		assert.Equal(t, tc.want, v, "NextValue(%d)", tc.from)
	}
}

func TestBitmap_RemoveRange(t *testing.T) {
	b, ref := pairedBitmaps(21)
	for _, r := range [][2]uint64{
		{0, 0},
		{100, 100},
		{3<<16 + 10, 3<<16 + 30000},
		{7<<16 + 1, 7<<16 + 2},
		{8<<16 - 5, 9<<16 + 50},
		{1 << 20, 1 << 30},
		{0xFFFF0000, MaxValue},
	} {
		require.NoError(t, b.RemoveRange(r[0], r[1]))
		ref.RemoveRange(r[0], r[1])
		mustCheck(t, b)
		require.Equal(t, ref.GetCardinality(), b.Count(), "after RemoveRange(%d, %d)", r[0], r[1])
		assert.Equal(t, uint64(0), b.CountRange(r[0], r[1]))
	}
	if diff := cmp.Diff(ref.ToArray(), b.Slice()); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}

	require.NoError(t, b.RemoveRange(0, MaxValue))
	assert.True(t, b.IsEmpty())
	_, err := b.Last()
	assert.True(t, errors.Is(err, ErrEmptyBitmap))
	_, err = b.First()
	assert.True(t, errors.Is(err, ErrEmptyBitmap))
}

func TestBitmap_RemoveRangeInvalid(t *testing.T) {
	b := NewBitmap(1, 2, 3)
	for _, r := range [][2]uint64{{5, 4}, {0, MaxValue + 1}, {MaxValue + 1, MaxValue + 2}} {
		err := b.RemoveRange(r[0], r[1])
		assert.True(t, errors.Is(err, ErrInvalidRange), "RemoveRange(%d, %d): %v", r[0], r[1], err)
		err = b.AddRange(r[0], r[1])
		assert.True(t, errors.Is(err, ErrInvalidRange), "AddRange(%d, %d): %v", r[0], r[1], err)
	}
	assert.Equal(t, uint64(3), b.Count())
}

// Containers wholly inside the range go; the ones at its edges stay
// trimmed, whatever their encoding.
func TestBitmap_RemoveRangeDropsContainers(t *testing.T) {
	b := newSeededBitmap(3).withArrayAt(1).withBitmapAt(2).withRunAt(3).withArrayAt(4).build()
	logs := logger.NewBufferLogger()
	b.logger = logs
	before := b.CountRange(1<<16+100, 4<<16+100)
	count := b.Count()

	require.NoError(t, b.RemoveRange(1<<16+100, 4<<16+100))
	mustCheck(t, b)
	assert.Equal(t, count-before, b.Count())
	assert.Nil(t, b.containers.Get(2))
	assert.Nil(t, b.containers.Get(3))
	assert.Contains(t, logs.String(), "DEBUG: roaring: removed range [65636, 262244)")
}

func TestBitmap_AddRange(t *testing.T) {
	b := NewBitmap(70000)
	require.NoError(t, b.AddRange(65530, 3<<16+2))
	mustCheck(t, b)
	assert.Equal(t, uint64(3<<16+2-65530), b.Count())
	assert.Equal(t, "run", b.containers.Get(2).TypeName())
	assert.True(t, b.Contains(70000))
	assert.Equal(t, uint64(65536), b.CountRange(1<<16, 2<<16))
	assert.Equal(t, uint64(6), b.CountRange(0, 1<<16))
	assert.Equal(t, b.Count(), b.CountRange(0, MaxValue+100))

	require.NoError(t, b.AddRange(0, MaxValue))
	assert.Equal(t, MaxValue, b.Count())
	mustCheck(t, b)
}

// A range landing on an absent key gets whichever encoding is smallest.
func TestBitmap_AddRangeEncoding(t *testing.T) {
	for _, tc := range []struct {
		lo, hi uint64
		typ    string
	}{
		{5, 6, "array"},
		{5, 8, "array"},
		{5, 9, "run"},
		{1 << 16, 1<<16 + 4000, "run"},
		{0, 1 << 16, "run"},
	} {
		b := NewBitmap()
		require.NoError(t, b.AddRange(tc.lo, tc.hi))
		mustCheck(t, b)
		assert.Equal(t, tc.hi-tc.lo, b.Count())
		c := b.containers.Get(highbits(uint32(tc.lo)))
		require.NotNil(t, c)
		assert.Equal(t, tc.typ, c.TypeName(), "AddRange(%d, %d)", tc.lo, tc.hi)

		want := NewBitmap(rangeValues(uint32(tc.lo), uint32(tc.hi), all)...)
		want.Optimize()
		assert.Equal(t, want.containers.Get(highbits(uint32(tc.lo))).TypeName(), c.TypeName())
	}
}

// Decoding a bitmap and inserting the values into a new one reproduces it.
func TestBitmap_Rebuild(t *testing.T) {
	for _, f := range iterationFixtures(t) {
		if f.large {
			continue
		}
		t.Run(f.name, func(t *testing.T) {
			rebuilt := NewBitmap(f.b.Slice()...)
			mustCheck(t, rebuilt)
			assert.True(t, rebuilt.Equal(f.b))
			assert.True(t, f.b.Equal(rebuilt))
			assert.Equal(t, f.b.Checksum(), rebuilt.Checksum())
		})
	}
}

func TestBitmap_CloneAndEqual(t *testing.T) {
	b, _ := pairedBitmaps(5)
	clone := b.Clone()
	require.True(t, clone.Equal(b))

	clone.Optimize()
	assert.True(t, clone.Equal(b), "optimize changes encodings, not values")
	assert.Equal(t, b.Checksum(), clone.Checksum())

	v := uint32(b.NextAbsentValue(4 << 16))
	require.True(t, clone.DirectAdd(v))
	assert.False(t, clone.Equal(b))
	assert.False(t, b.Contains(v))
	assert.NotEqual(t, b.Checksum(), clone.Checksum())
}

func TestBitmap_AddRemove(t *testing.T) {
	b := NewBitmap()
	assert.True(t, b.IsEmpty())
	assert.True(t, b.Add(1, 2, 3))
	assert.False(t, b.Add(1, 2))
	assert.True(t, b.Add(2, 4))
	assert.Equal(t, uint64(4), b.Count())

	assert.False(t, b.Remove(100))
	assert.True(t, b.Remove(1, 2, 3, 4))
	assert.True(t, b.IsEmpty())
	assert.Equal(t, 0, b.containers.Size(), "empty containers are dropped")
}

func TestBitmap_QuickRank(t *testing.T) {
	f := func(values []uint32, probe uint32) bool {
		b := NewBitmap(values...)
		ref := oracle.BitmapOf(values...)
		if b.Rank(probe) != ref.Rank(probe) || b.Count() != ref.GetCardinality() {
			return false
		}
		for i := uint64(0); i < b.Count(); i++ {
			v, err := b.Select(i)
			if err != nil || b.Rank(v) != i+1 {
				return false
			}
		}
		return true
	}
	if err := quick.Check(f, nil); err != nil {
		t.Fatal(err)
	}
}

func TestBitmap_Info(t *testing.T) {
	b := NewBitmap(1, 2, 3)
	require.NoError(t, b.AddRange(5<<16, 5<<16+100))
	info := b.Info()
	assert.Equal(t, BitmapInfo{
		Count: 103,
		Containers: []ContainerInfo{
			{Key: 0, Type: "array", N: 3, Size: 6, Runs: 1},
			{Key: 5, Type: "run", N: 100, Size: 6, Runs: 1},
		},
	}, info)
	assert.Equal(t, "[key 00000] array  n=3     size=6     runs=1\n[key 00005] run    n=100   size=6     runs=1\n", b.ContainerSummary())
}

func TestBitmap_String(t *testing.T) {
	assert.Equal(t, "c()", NewBitmap().String())
	assert.Equal(t, "c(1, 2, 65536)", NewBitmap(65536, 2, 1).String())

	long := rangeWhere(100000, 100030, all).String()
	lines := strings.Split(long, "\n")
	require.Greater(t, len(lines), 1)
	for _, l := range lines[:len(lines)-1] {
		assert.True(t, strings.HasSuffix(l, ","), "%q", l)
	}
}

func TestBitmap_Check(t *testing.T) {
	logs := logger.NewBufferLogger()
	b, err := New(OptLogger(logs))
	require.NoError(t, err)
	b.Add(1, 2, 1<<16)
	require.NoError(t, b.Check())

	b.containers.Get(1).n = 7
	b.containers.Put(9, NewContainer())
	err = b.Check()
	require.Error(t, err)
	list, ok := err.(ErrorList)
	require.True(t, ok)
	assert.Len(t, list, 2)
	assert.Contains(t, logs.String(), "ERROR: roaring: check failed")
}

func TestNew_Options(t *testing.T) {
	cfg := Config{ArrayMaxSize: 16, RunMaxSize: 4, OptimizeOnRemoveRange: true}
	b, err := New(OptConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, cfg, b.Config())

	for v := uint32(0); v < 17; v++ {
		b.DirectAdd(v * 2)
	}
	assert.Equal(t, "bitmap", b.containers.Get(0).TypeName())

	// What is left is two runs, which OptimizeOnRemoveRange picks.
	require.NoError(t, b.RemoveRange(0, 2))
	require.NoError(t, b.AddRange(0, 40))
	require.NoError(t, b.RemoveRange(30, 31))
	assert.Equal(t, "run", b.containers.Get(0).TypeName())
	mustCheck(t, b)

	_, err = New(OptConfig(Config{ArrayMaxSize: 0, RunMaxSize: 1}))
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)
	_, err = New(OptConfig(Config{ArrayMaxSize: 1, RunMaxSize: 40000}))
	assert.True(t, errors.Is(err, ErrInvalidConfig), "%v", err)
}

func TestBitmap_ForEach(t *testing.T) {
	b, _ := pairedBitmaps(8)
	var got []uint32
	b.ForEach(func(v uint32) { got = append(got, v) })
	if diff := cmp.Diff(b.Slice(), got); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestBitmap_Checksum(t *testing.T) {
	a := NewBitmap()
	require.NoError(t, a.AddRange(0, 5000))
	b := NewBitmap(rangeWhere(0, 5000, all).Slice()...)
	require.NotEqual(t, a.containers.Get(0).TypeName(), b.containers.Get(0).TypeName())
	assert.Equal(t, a.Checksum(), b.Checksum())
	assert.Len(t, a.Checksum(), 8)
	assert.False(t, bytes.Equal(a.Checksum(), NewBitmap().Checksum()))
}

func TestMetrics(t *testing.T) {
	toBitmap := CounterContainerConversions.WithLabelValues("array", "bitmap")
	skip := CounterIteratorSeeks.WithLabelValues(seekSkipContainer)
	intra := CounterIteratorSeeks.WithLabelValues(seekIntraContainer)
	exhausted := CounterIteratorSeeks.WithLabelValues(seekExhausted)
	conv0, skip0, intra0, ex0 := testutil.ToFloat64(toBitmap), testutil.ToFloat64(skip), testutil.ToFloat64(intra), testutil.ToFloat64(exhausted)

	b := rangeWhere(0, 2*ArrayMaxSize+2, func(v uint32) bool { return v%2 == 0 })
	b.Add(5<<16, 5<<16+10)
	assert.Equal(t, conv0+1, testutil.ToFloat64(toBitmap))

	itr := b.BatchIterator()
	itr.AdvanceIfNeeded(100)
	itr.AdvanceIfNeeded(5<<16 + 1)
	itr.AdvanceIfNeeded(6 << 16)
	assert.Equal(t, skip0+2, testutil.ToFloat64(skip))
	assert.Equal(t, intra0+2, testutil.ToFloat64(intra))
	assert.Equal(t, ex0+1, testutil.ToFloat64(exhausted))
}
