// Copyright (C) 2020-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire implements the binary frame codec of spec.md §4.6/§6: the
// fixed big-endian encodings for Key, Value, DirectoryInfo, Edgeset,
// CollectedPopularity, VictimCacheinfo (with dedup), DirinfoSet (Complete
// or Compressed) and VictimSyncset (Complete or Delta), plus FastPathHint.
// All multi-byte integers are big-endian, matching the wire description.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/luxfi/covered/directory"
	"github.com/luxfi/covered/keyspace"
	"github.com/luxfi/covered/popularity"
	"github.com/luxfi/covered/victim"
)

// Writer accumulates frame bytes. The zero value is ready to use.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the accumulated frame.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

func (w *Writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *Writer) u32(v uint32) { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); w.buf.Write(b[:]) }
func (w *Writer) u64(v uint64) { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); w.buf.Write(b[:]) }
func (w *Writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *Writer) f32(v float64) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(float32(v)))
	w.buf.Write(b[:])
}
func (w *Writer) bytes(b []byte) { w.buf.Write(b) }

// Reader consumes frame bytes sequentially, returning an error on
// truncated input rather than panicking.
type Reader struct {
	b   []byte
	pos int
}

// NewReader wraps b for sequential decoding.
func NewReader(b []byte) *Reader { return &Reader{b: b} }

func (r *Reader) need(n int) error {
	if r.pos+n > len(r.b) {
		return fmt.Errorf("wire: truncated frame: need %d bytes, have %d", n, len(r.b)-r.pos)
	}
	return nil
}

func (r *Reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *Reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *Reader) f32() (float64, error) {
	v, err := r.u32()
	if err != nil {
		return 0, err
	}
	return float64(math.Float32frombits(v)), nil
}

func (r *Reader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := append([]byte(nil), r.b[r.pos:r.pos+n]...)
	r.pos += n
	return out, nil
}

// EncodeKey writes a Key frame: u32 length || bytes.
func EncodeKey(w *Writer, k keyspace.Key) {
	w.u32(uint32(len(k)))
	w.bytes(k)
}

// DecodeKey reads a Key frame.
func DecodeKey(r *Reader) (keyspace.Key, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	b, err := r.bytesN(int(n))
	if err != nil {
		return nil, err
	}
	return keyspace.Key(b), nil
}

// EncodeValue writes a Value frame: u32 length || bytes.
func EncodeValue(w *Writer, v []byte) {
	w.u32(uint32(len(v)))
	w.bytes(v)
}

// DecodeValue reads a Value frame.
func DecodeValue(r *Reader) ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.bytesN(int(n))
}

// EncodeDirectoryInfo writes a DirectoryInfo frame: u32 target_edge_idx.
func EncodeDirectoryInfo(w *Writer, d directory.Info) {
	w.u32(uint32(d.TargetEdge))
}

// DecodeDirectoryInfo reads a DirectoryInfo frame.
func DecodeDirectoryInfo(r *Reader) (directory.Info, error) {
	v, err := r.u32()
	if err != nil {
		return directory.Info{}, err
	}
	return directory.Info{TargetEdge: keyspace.EdgeIndex(v)}, nil
}

// EncodeEdgeset writes an Edgeset frame: u32 count || u32 × count.
func EncodeEdgeset(w *Writer, s directory.Edgeset) {
	edges := s.List()
	w.u32(uint32(len(edges)))
	for _, e := range edges {
		w.u32(uint32(e))
	}
}

// DecodeEdgeset reads an Edgeset frame.
func DecodeEdgeset(r *Reader) (directory.Edgeset, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	s := make(directory.Edgeset, n)
	for i := uint32(0); i < n; i++ {
		v, err := r.u32()
		if err != nil {
			return nil, err
		}
		s.Add(keyspace.EdgeIndex(v))
	}
	return s, nil
}

// EncodeCollectedPopularity writes a CollectedPopularity frame:
// u8 is_tracked || f32 popularity.
func EncodeCollectedPopularity(w *Writer, c popularity.Collected) {
	if c.IsTracked {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.f32(c.LocalUncachedPopularity)
}

// DecodeCollectedPopularity reads a CollectedPopularity frame.
func DecodeCollectedPopularity(r *Reader) (popularity.Collected, error) {
	tracked, err := r.u8()
	if err != nil {
		return popularity.Collected{}, err
	}
	pop, err := r.f32()
	if err != nil {
		return popularity.Collected{}, err
	}
	return popularity.Collected{IsTracked: tracked != 0, LocalUncachedPopularity: pop}, nil
}

// EncodeFastPathHint writes a FastPathHint frame:
// f32 sum_local_uncached_popularity || f32 smallest_max_admission_benefit.
func EncodeFastPathHint(w *Writer, h popularity.FastPathHint) {
	w.f32(h.SumLocalUncachedPopularityExcludingRequester)
	w.f32(h.SmallestMaxAdmissionBenefitInAggregator)
}

// DecodeFastPathHint reads a FastPathHint frame.
func DecodeFastPathHint(r *Reader) (popularity.FastPathHint, error) {
	sum, err := r.f32()
	if err != nil {
		return popularity.FastPathHint{}, err
	}
	smallest, err := r.f32()
	if err != nil {
		return popularity.FastPathHint{}, err
	}
	return popularity.FastPathHint{
		SumLocalUncachedPopularityExcludingRequester: sum,
		SmallestMaxAdmissionBenefitInAggregator:      smallest,
	}, nil
}

// Victim cacheinfo dedup bits: bit 0 set ⇒ ObjectSize elided, bit 1 set ⇒
// LocalCachedPopularity elided, bit 2 set ⇒ RedirectedCachedPopularity
// elided (spec.md §6 VictimCacheinfo frame), grounded on the original's
// per-field dedup_bitmap (src/core/victim/victim_cacheinfo.c).
const (
	dedupObjectSize = 1 << 0
	dedupLocalPop   = 1 << 1
	dedupRedirPop   = 1 << 2
)

// EncodeVictimCacheinfo writes a VictimCacheinfo frame, deduping any
// field that is unchanged from prior (nil prior forces a complete frame).
func EncodeVictimCacheinfo(w *Writer, v victim.Cacheinfo, prior *victim.Cacheinfo) {
	var bitmap uint8
	if prior != nil {
		if prior.ObjectSize == v.ObjectSize {
			bitmap |= dedupObjectSize
		}
		if prior.LocalCachedPopularity == v.LocalCachedPopularity {
			bitmap |= dedupLocalPop
		}
		if prior.RedirectedCachedPopularity == v.RedirectedCachedPopularity {
			bitmap |= dedupRedirPop
		}
	}
	w.u8(bitmap)
	EncodeKey(w, v.Key)
	if bitmap&dedupObjectSize == 0 {
		w.u32(uint32(v.ObjectSize))
	}
	if bitmap&dedupLocalPop == 0 {
		w.f32(v.LocalCachedPopularity)
	}
	if bitmap&dedupRedirPop == 0 {
		w.f32(v.RedirectedCachedPopularity)
	}
}

// DecodeVictimCacheinfo reads a VictimCacheinfo frame, filling deduped
// fields from prior. A deduped field with no prior is returned as a plain
// error naming the field and key; it does not wrap ErrStaleVictimSync.
func DecodeVictimCacheinfo(r *Reader, prior *victim.Cacheinfo) (victim.Cacheinfo, error) {
	bitmap, err := r.u8()
	if err != nil {
		return victim.Cacheinfo{}, err
	}
	key, err := DecodeKey(r)
	if err != nil {
		return victim.Cacheinfo{}, err
	}
	return decodeVictimCacheinfoFields(r, bitmap, key, prior)
}

func decodeVictimCacheinfoFields(r *Reader, bitmap uint8, key keyspace.Key, prior *victim.Cacheinfo) (victim.Cacheinfo, error) {
	out := victim.Cacheinfo{Key: key}

	if bitmap&dedupObjectSize != 0 {
		if prior == nil {
			return victim.Cacheinfo{}, fmt.Errorf("wire: deduped object_size with no prior for key %q", key.String())
		}
		out.ObjectSize = prior.ObjectSize
	} else {
		v, err := r.u32()
		if err != nil {
			return victim.Cacheinfo{}, err
		}
		out.ObjectSize = keyspace.ObjectSize(v)
	}

	if bitmap&dedupLocalPop != 0 {
		if prior == nil {
			return victim.Cacheinfo{}, fmt.Errorf("wire: deduped local_pop with no prior for key %q", key.String())
		}
		out.LocalCachedPopularity = prior.LocalCachedPopularity
	} else {
		v, err := r.f32()
		if err != nil {
			return victim.Cacheinfo{}, err
		}
		out.LocalCachedPopularity = v
	}

	if bitmap&dedupRedirPop != 0 {
		if prior == nil {
			return victim.Cacheinfo{}, fmt.Errorf("wire: deduped redir_pop with no prior for key %q", key.String())
		}
		out.RedirectedCachedPopularity = prior.RedirectedCachedPopularity
	} else {
		v, err := r.f32()
		if err != nil {
			return victim.Cacheinfo{}, err
		}
		out.RedirectedCachedPopularity = v
	}

	return out, nil
}

// DirinfoSet wire discriminant: Complete carries the full member list;
// Compressed signals "unchanged since the last sync to this peer" and
// carries no members.
const (
	dirinfoComplete   = 0
	dirinfoCompressed = 1
)

// EncodeDirinfoSet writes a DirinfoSet frame: u8 compressed_flag || u32
// count || DirectoryInfo × count. Pass nil for set to emit a Compressed
// (unchanged) frame.
func EncodeDirinfoSet(w *Writer, set *directory.DirinfoSet) {
	if set == nil {
		w.u8(dirinfoCompressed)
		w.u32(0)
		return
	}
	w.u8(dirinfoComplete)
	edges := set.List()
	w.u32(uint32(len(edges)))
	for _, e := range edges {
		EncodeDirectoryInfo(w, directory.Info{TargetEdge: e})
	}
}

// DecodeDirinfoSet reads a DirinfoSet frame. For a Compressed frame it
// returns the decoded (possibly empty) set with complete=false, signaling
// the caller to keep its prior set.
func DecodeDirinfoSet(r *Reader) (set *directory.DirinfoSet, complete bool, err error) {
	flag, err := r.u8()
	if err != nil {
		return nil, false, err
	}
	n, err := r.u32()
	if err != nil {
		return nil, false, err
	}
	out := directory.NewDirinfoSet()
	for i := uint32(0); i < n; i++ {
		d, err := DecodeDirectoryInfo(r)
		if err != nil {
			return nil, false, err
		}
		out.Add(d.TargetEdge)
	}
	return out, flag == dirinfoComplete, nil
}

// Syncset mode discriminant bits packed into the compressed_bitmap byte:
// bit 0 set ⇒ Delta (cleared ⇒ Complete); bit 1 set ⇒ cache margin field
// is a signed 32-bit delta (cleared ⇒ an absolute u64).
const (
	syncsetDeltaBit       = 1 << 0
	syncsetMarginDeltaBit = 1 << 1
)

// EncodeVictimSyncset writes a VictimSyncset frame per spec.md §6:
// u8 compressed_bitmap || (u64 cache_margin_bytes | i32 cache_margin_delta_bytes)
// || u32 n_victims || VictimCacheinfo × n_victims || u32 n_beaconed ||
// (Key || DirinfoSet) × n_beaconed. Each victim is encoded against
// s.Priors[key], so a Delta sync's per-field dedup bitmap actually elides
// fields unchanged since the last sync to this destination.
func EncodeVictimSyncset(w *Writer, s victim.Syncset) {
	var bitmap uint8
	if s.Mode == victim.SyncDelta {
		bitmap |= syncsetDeltaBit | syncsetMarginDeltaBit
	}
	w.u8(bitmap)
	if s.Mode == victim.SyncDelta {
		w.i32(s.CacheMarginDeltaBytes)
	} else {
		w.u64(s.CacheMarginBytes)
	}

	w.u32(uint32(len(s.Victims)))
	for _, v := range s.Victims {
		var prior *victim.Cacheinfo
		if p, ok := s.Priors[v.Key.AsMapKey()]; ok {
			prior = &p
		}
		EncodeVictimCacheinfo(w, v, prior)
	}

	w.u32(uint32(len(s.BeaconedDirinfo)))
	for k, d := range s.BeaconedDirinfo {
		EncodeKey(w, keyspace.Key(k))
		EncodeDirinfoSet(w, d)
	}
}

// DecodeVictimSyncset reads a VictimSyncset frame. priors supplies, by
// Key.AsMapKey(), the receiver's own last-known Cacheinfo for peers whose
// fields a Delta sync may have elided; pass nil when decoding a frame
// known to carry no dedup (e.g. a first/Complete sync).
func DecodeVictimSyncset(r *Reader, priors map[string]victim.Cacheinfo) (victim.Syncset, error) {
	bitmap, err := r.u8()
	if err != nil {
		return victim.Syncset{}, err
	}
	var s victim.Syncset
	if bitmap&syncsetDeltaBit != 0 {
		s.Mode = victim.SyncDelta
		d, err := r.i32()
		if err != nil {
			return victim.Syncset{}, err
		}
		s.CacheMarginDeltaBytes = d
	} else {
		s.Mode = victim.SyncComplete
		v, err := r.u64()
		if err != nil {
			return victim.Syncset{}, err
		}
		s.CacheMarginBytes = v
	}

	nv, err := r.u32()
	if err != nil {
		return victim.Syncset{}, err
	}
	s.Victims = make([]victim.Cacheinfo, 0, nv)
	for i := uint32(0); i < nv; i++ {
		vbitmap, err := r.u8()
		if err != nil {
			return victim.Syncset{}, err
		}
		key, err := DecodeKey(r)
		if err != nil {
			return victim.Syncset{}, err
		}
		var prior *victim.Cacheinfo
		if p, ok := priors[key.AsMapKey()]; ok {
			prior = &p
		}
		v, err := decodeVictimCacheinfoFields(r, vbitmap, key, prior)
		if err != nil {
			return victim.Syncset{}, err
		}
		s.Victims = append(s.Victims, v)
	}

	nb, err := r.u32()
	if err != nil {
		return victim.Syncset{}, err
	}
	s.BeaconedDirinfo = make(map[string]*directory.DirinfoSet, nb)
	for i := uint32(0); i < nb; i++ {
		key, err := DecodeKey(r)
		if err != nil {
			return victim.Syncset{}, err
		}
		set, _, err := DecodeDirinfoSet(r)
		if err != nil {
			return victim.Syncset{}, err
		}
		s.BeaconedDirinfo[key.AsMapKey()] = set
	}

	return s, nil
}
