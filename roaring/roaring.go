// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package roaring implements a compressed set of uint32 values.
//
// A value's high 16 bits select a container and its low 16 bits are stored
// inside that container, using whichever of three encodings (array, bitmap,
// run) suits the values that share the key. Values are read back in
// ascending order through batch iterators which decode many values per call
// and can jump forward without decoding what they skip.
package roaring

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash"
	"github.com/molecula/roaring32/errors"
	"github.com/molecula/roaring32/logger"
)

// Error codes returned by Bitmap operations.
const (
	ErrOutOfRange   errors.Code = "OutOfRange"
	ErrInvalidRange errors.Code = "InvalidRange"
	ErrEmptyBitmap  errors.Code = "EmptyBitmap"
)

// MaxValue is one past the largest value a Bitmap can hold. It is the
// exclusive upper bound for ranges, and what NextAbsentValue returns when
// every value from its argument up is present.
const MaxValue = uint64(1) << 32

// Bitmap represents a roaring bitmap of uint32 values.
//
// A Bitmap is not safe for concurrent mutation. Any number of goroutines
// may read it, including through iterators, while nothing writes to it.
type Bitmap struct {
	containers *sliceContainers

	cfg    Config
	p      *policy
	logger logger.Logger

	// gen changes whenever the contents or the encoding of any container
	// change. Iterators compare it against the value they started with.
	gen uint64
}

// BitmapOption is a functional option for New.
type BitmapOption func(b *Bitmap) error

// OptConfig sets the container conversion thresholds.
func OptConfig(cfg Config) BitmapOption {
	return func(b *Bitmap) error {
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(err, "validating bitmap config")
		}
		b.cfg = cfg
		b.p = cfg.policy()
		return nil
	}
}

// OptLogger sets the logger which receives debug output and consistency
// check failures.
func OptLogger(l logger.Logger) BitmapOption {
	return func(b *Bitmap) error {
		b.logger = l
		return nil
	}
}

// New returns an empty Bitmap configured by opts.
func New(opts ...BitmapOption) (*Bitmap, error) {
	b := newBitmap()
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, errors.Wrap(err, "applying option")
		}
	}
	return b, nil
}

// NewBitmap returns a Bitmap with the default configuration and an initial
// set of values.
func NewBitmap(a ...uint32) *Bitmap {
	b := newBitmap()
	b.Add(a...)
	return b
}

func newBitmap() *Bitmap {
	return &Bitmap{
		containers: newSliceContainers(),
		cfg:        DefaultConfig(),
		p:          defaultPolicy,
		logger:     logger.NopLogger,
	}
}

// Config returns the configuration the bitmap was built with.
func (b *Bitmap) Config() Config { return b.cfg }

// Clone returns a heap allocated copy of the bitmap. Iterators over b are
// not affected by changes to the clone.
func (b *Bitmap) Clone() *Bitmap {
	if b == nil {
		return nil
	}
	return &Bitmap{
		containers: b.containers.Clone(),
		cfg:        b.cfg,
		p:          b.p,
		logger:     b.logger,
	}
}

// Add adds values to the bitmap, and reports whether any was absent.
func (b *Bitmap) Add(a ...uint32) (changed bool) {
	for _, v := range a {
		if b.DirectAdd(v) {
			changed = true
		}
	}
	return changed
}

// DirectAdd adds a single value and reports whether it was absent.
func (b *Bitmap) DirectAdd(v uint32) bool {
	c := b.containers.GetOrCreate(highbits(v), b.p)
	if !c.Add(lowbits(v)) {
		return false
	}
	b.gen++
	return true
}

// Remove removes values from the bitmap, and reports whether any was
// present.
func (b *Bitmap) Remove(a ...uint32) (changed bool) {
	for _, v := range a {
		if b.DirectRemove(v) {
			changed = true
		}
	}
	return changed
}

// DirectRemove removes a single value and reports whether it was present.
// A container left empty is dropped from the index.
func (b *Bitmap) DirectRemove(v uint32) bool {
	i, found := b.containers.seek(highbits(v))
	if !found {
		return false
	}
	c := b.containers.containerAt(i)
	if !c.Remove(lowbits(v)) {
		return false
	}
	if c.n == 0 {
		b.containers.removeAt(i)
	}
	b.gen++
	return true
}

// validRange returns an InvalidRange error unless [lo, hi) is a range of
// uint32 values.
func validRange(lo, hi uint64) error {
	if lo > hi {
		return errors.Newf(ErrInvalidRange, "range start %d is after end %d", lo, hi)
	}
	if hi > MaxValue {
		return errors.Newf(ErrInvalidRange, "range end %d exceeds %d", hi, MaxValue)
	}
	return nil
}

// containerSpan returns the part of [lo, hi) which falls in the container
// for key, as offsets within that container.
func containerSpan(key uint16, lo, hi uint64) (int, int) {
	base := uint64(key) << 16
	start, end := lo, hi
	if start < base {
		start = base
	}
	if end > base+maxContainerN {
		end = base + maxContainerN
	}
	return int(start - base), int(end - base)
}

// RemoveRange removes every value in [lo, hi). Containers inside the range
// are dropped whole, and the ones at its edges are trimmed. An empty range
// is a no-op.
func (b *Bitmap) RemoveRange(lo, hi uint64) error {
	if err := validRange(lo, hi); err != nil {
		return err
	}
	if lo == hi {
		return nil
	}
	hiKey := uint16((hi - 1) >> 16)
	i, _ := b.containers.seek(uint16(lo >> 16))

	var removed uint64
	var dropped, converted int
	for i < b.containers.Size() && b.containers.keyAt(i) <= hiKey {
		key, c := b.containers.keyAt(i), b.containers.containerAt(i)
		start, end := containerSpan(key, lo, hi)
		if start == 0 && end == maxContainerN {
			removed += uint64(c.n)
			b.containers.removeAt(i)
			dropped++
			continue
		}
		removed += uint64(c.removeRange(start, end))
		if c.n == 0 {
			b.containers.removeAt(i)
			dropped++
			continue
		}
		if b.p.optimizeOnRemoveRange && c.optimize() {
			converted++
		}
		i++
	}
	if removed > 0 || converted > 0 {
		b.gen++
	}
	b.logger.Debugf("roaring: removed range [%d, %d): %d values, %d containers dropped", lo, hi, removed, dropped)
	return nil
}

// AddRange adds every value in [lo, hi). Keys with no container yet get a
// new one holding the span in its smallest encoding.
func (b *Bitmap) AddRange(lo, hi uint64) error {
	if err := validRange(lo, hi); err != nil {
		return err
	}
	if lo == hi {
		return nil
	}
	var added uint64
	for key := lo >> 16; key <= (hi-1)>>16; key++ {
		start, end := containerSpan(uint16(key), lo, hi)
		c := b.containers.Get(uint16(key))
		if c == nil {
			c = NewContainerRun([]Interval16{{Start: uint16(start), Last: uint16(end - 1)}})
			c.p = b.p
			c.optimize()
			b.containers.Put(uint16(key), c)
			added += uint64(c.n)
			continue
		}
		added += uint64(c.addRange(start, end))
	}
	if added > 0 {
		b.gen++
	}
	return nil
}

// Contains returns true if v is in the bitmap.
func (b *Bitmap) Contains(v uint32) bool {
	return b.containers.Get(highbits(v)).Contains(lowbits(v))
}

// Count returns the number of values in the bitmap.
func (b *Bitmap) Count() uint64 {
	return b.containers.Count()
}

// CountRange returns the number of values in [lo, hi). Bounds past the
// end of the value space are clamped.
func (b *Bitmap) CountRange(lo, hi uint64) (n uint64) {
	if hi > MaxValue {
		hi = MaxValue
	}
	if lo >= hi {
		return 0
	}
	hiKey := uint16((hi - 1) >> 16)
	for i, _ := b.containers.seek(uint16(lo >> 16)); i < b.containers.Size(); i++ {
		key := b.containers.keyAt(i)
		if key > hiKey {
			break
		}
		start, end := containerSpan(key, lo, hi)
		n += uint64(b.containers.containerAt(i).countRange(start, end))
	}
	return n
}

// IsEmpty reports whether the bitmap holds no values.
func (b *Bitmap) IsEmpty() bool {
	return b.containers.Size() == 0
}

// Rank returns the number of values in the bitmap which are <= v.
func (b *Bitmap) Rank(v uint32) (n uint64) {
	i, found := b.containers.seek(highbits(v))
	for _, c := range b.containers.containers[:i] {
		n += uint64(c.n)
	}
	if found {
		n += uint64(b.containers.containerAt(i).Rank(lowbits(v)))
	}
	return n
}

// Select returns the i-th smallest value, counting from 0.
func (b *Bitmap) Select(i uint64) (uint32, error) {
	rem := i
	for x, c := range b.containers.containers {
		if rem < uint64(c.n) {
			v, _ := c.Select(int32(rem))
			return uint32(b.containers.keyAt(x))<<16 | uint32(v), nil
		}
		rem -= uint64(c.n)
	}
	return 0, errors.Newf(ErrOutOfRange, "select index %d with cardinality %d", i, b.Count())
}

// NextAbsentValue returns the smallest value >= from which is not in the
// bitmap, or MaxValue if there is none.
func (b *Bitmap) NextAbsentValue(from uint32) uint64 {
	key := highbits(from)
	i, found := b.containers.seek(key)
	if !found {
		return uint64(from)
	}
	v := int(lowbits(from))
	for {
		next := b.containers.containerAt(i).nextAbsent(v)
		if next < maxContainerN {
			return uint64(key)<<16 | uint64(next)
		}
		// The container is full from v up; carry on into the next key.
		if key == 0xFFFF {
			return MaxValue
		}
		key++
		i++
		if i >= b.containers.Size() || b.containers.keyAt(i) != key {
			return uint64(key) << 16
		}
		v = 0
	}
}

// NextValue returns the smallest value >= from in the bitmap. ok is false
// if there is none.
func (b *Bitmap) NextValue(from uint32) (v uint32, ok bool) {
	i, found := b.containers.seek(highbits(from))
	if found {
		if low := b.containers.containerAt(i).nextValue(int(lowbits(from))); low >= 0 {
			return uint32(b.containers.keyAt(i))<<16 | uint32(low), true
		}
		i++
	}
	if i >= b.containers.Size() {
		return 0, false
	}
	return uint32(b.containers.keyAt(i))<<16 | uint32(b.containers.containerAt(i).Min()), true
}

// First returns the smallest value in the bitmap.
func (b *Bitmap) First() (uint32, error) {
	if b.IsEmpty() {
		return 0, errors.New(ErrEmptyBitmap, "first of empty bitmap")
	}
	return uint32(b.containers.keyAt(0))<<16 | uint32(b.containers.containerAt(0).Min()), nil
}

// Last returns the largest value in the bitmap.
func (b *Bitmap) Last() (uint32, error) {
	key, c := b.containers.Last()
	if c == nil {
		return 0, errors.New(ErrEmptyBitmap, "last of empty bitmap")
	}
	return uint32(key)<<16 | uint32(c.Max()), nil
}

// Equal reports whether b and other hold the same values, regardless of
// how their containers are encoded.
func (b *Bitmap) Equal(other *Bitmap) bool {
	if b.containers.Size() != other.containers.Size() {
		return false
	}
	for i, key := range b.containers.keys {
		if other.containers.keyAt(i) != key {
			return false
		}
		if !b.containers.containerAt(i).equal(other.containers.containerAt(i)) {
			return false
		}
	}
	return true
}

// Optimize converts every container to its smallest encoding.
func (b *Bitmap) Optimize() {
	var changed int
	for _, c := range b.containers.containers {
		if c.optimize() {
			changed++
		}
	}
	if changed > 0 {
		b.gen++
	}
	b.logger.Debugf("roaring: optimized %d of %d containers", changed, b.containers.Size())
}

// Slice returns a slice of all values in the bitmap, in ascending order.
func (b *Bitmap) Slice() []uint32 {
	a := make([]uint32, b.Count())
	n := b.BatchIterator().NextBatch(a)
	return a[:n]
}

// ForEach executes fn for each value in the bitmap, in ascending order.
func (b *Bitmap) ForEach(fn func(uint32)) {
	itr := b.BatchIterator().AsIntIterator(nil)
	for itr.HasNext() {
		fn(itr.Next())
	}
}

// Info returns stats for the bitmap.
func (b *Bitmap) Info() BitmapInfo {
	info := BitmapInfo{
		Count:      b.Count(),
		Containers: make([]ContainerInfo, 0, b.containers.Size()),
	}

	citer, _ := b.containers.Iterator(0)
	for citer.Next() {
		k, c := citer.Value()
		ci := c.info()
		ci.Key = k
		info.Containers = append(info.Containers, ci)
	}

	return info
}

// BitmapInfo represents a point-in-time snapshot of bitmap stats.
type BitmapInfo struct {
	Count      uint64
	Containers []ContainerInfo
}

// Check performs a consistency check on the bitmap. Returns nil if
// consistent. Problems are also reported to the bitmap's logger.
func (b *Bitmap) Check() error {
	var a ErrorList

	// Check keys/containers match. Return immediately if this happens.
	if len(b.containers.keys) != len(b.containers.containers) {
		a.Append(fmt.Errorf("key/container count mismatch: %d != %d", len(b.containers.keys), len(b.containers.containers)))
		b.logger.Errorf("roaring: check failed: %v", a)
		return a
	}

	for i, key := range b.containers.keys {
		if i > 0 && b.containers.keys[i-1] >= key {
			a.Append(fmt.Errorf("keys out of order at %d: %d >= %d", i, b.containers.keys[i-1], key))
		}
		c := b.containers.containerAt(i)
		if c == nil {
			a.Append(fmt.Errorf("%d/: nil container", key))
			continue
		}
		if c.n == 0 {
			a.Append(fmt.Errorf("%d/: empty container", key))
		}
		if err := c.check(); err != nil {
			a.AppendWithPrefix(err, fmt.Sprintf("%d/", key))
		}
	}

	if len(a) == 0 {
		return nil
	}
	b.logger.Errorf("roaring: check failed: %v", a)
	return a
}

// Checksum returns a hash of the bitmap's values. Bitmaps holding the same
// values have the same checksum whatever their container encodings.
func (b *Bitmap) Checksum() []byte {
	h := xxhash.New()
	var buf [DefaultBatchSize]uint32
	var raw [DefaultBatchSize * 4]byte
	itr := b.BatchIterator()
	for n := itr.NextBatch(buf[:]); n > 0; n = itr.NextBatch(buf[:]) {
		for i, v := range buf[:n] {
			binary.LittleEndian.PutUint32(raw[i*4:], v)
		}
		_, _ = h.Write(raw[:n*4])
	}
	return h.Sum(nil)
}

// ErrorList represents a list of errors.
type ErrorList []error

func (a ErrorList) Error() string {
	switch len(a) {
	case 0:
		return "no errors"
	case 1:
		return a[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", a[0], len(a)-1)
}

// Append appends an error to the list. If err is an ErrorList then all errors are appended.
func (a *ErrorList) Append(err error) {
	switch err := err.(type) {
	case ErrorList:
		*a = append(*a, err...)
	default:
		*a = append(*a, err)
	}
}

// AppendWithPrefix appends an error to the list and includes a prefix.
func (a *ErrorList) AppendWithPrefix(err error, prefix string) {
	switch err := err.(type) {
	case ErrorList:
		for i := range err {
			*a = append(*a, fmt.Errorf("%s%s", prefix, err[i]))
		}
	default:
		*a = append(*a, fmt.Errorf("%s%s", prefix, err))
	}
}
