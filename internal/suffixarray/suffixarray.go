// Package suffixarray builds a suffix array over a reference byte
// slice and performs the longest-common-prefix binary search used by
// the delta generator to locate candidate matches. The construction
// is the Larsson-Sadakane qsufsort algorithm (the same one bsdiff and
// its descendants use), adapted to int32 indices since the engine
// never operates on references at or above 2^31 bytes.
package suffixarray

import "bytes"

// Index is a suffix array over a reference: Index[0], Index[1], ...
// are indices into the reference such that the suffixes starting at
// those indices are in lexicographic order. len(Index) == len(ref)+1.
type Index []int32

// Build constructs the suffix array of ref. ref is not retained.
func Build(ref []byte) Index {
	n := len(ref)
	I := make([]int32, n+1)
	V := make([]int32, n+1)

	var buckets [256]int32
	for _, c := range ref {
		buckets[c]++
	}
	for i := 1; i < 256; i++ {
		buckets[i] += buckets[i-1]
	}
	copy(buckets[1:], buckets[:255])
	buckets[0] = 0

	for i, c := range ref {
		buckets[c]++
		I[buckets[c]] = int32(i)
	}
	I[0] = int32(n)

	for i, c := range ref {
		V[i] = buckets[c]
	}
	V[n] = 0

	for i := 1; i < 256; i++ {
		if buckets[i] == buckets[i-1]+1 {
			I[buckets[i]] = -1
		}
	}
	I[0] = -1

	for h := int32(1); I[0] != -int32(n+1); h += h {
		var length int32
		i := int32(0)
		for i < int32(n+1) {
			if I[i] < 0 {
				length -= I[i]
				i -= I[i]
			} else {
				if length != 0 {
					I[i-length] = -length
				}
				length = V[I[i]] + 1 - i
				split(I, V, i, length, h)
				i += length
				length = 0
			}
		}
		if length != 0 {
			I[i-length] = -length
		}
	}

	for i := 0; i < n+1; i++ {
		I[V[i]] = int32(i)
	}
	return I
}

// split is the ternary radix-partition step of qsufsort: it groups
// the suffixes I[start:start+length] by their rank at offset h.
func split(I, V []int32, start, length, h int32) {
	if length < 16 {
		for k := start; k < start+length; {
			j := int32(1)
			x := V[I[k]+h]
			for i := int32(1); k+i < start+length; i++ {
				if V[I[k+i]+h] < x {
					x = V[I[k+i]+h]
					j = 0
				}
				if V[I[k+i]+h] == x {
					I[k+i], I[k+j] = I[k+j], I[k+i]
					j++
				}
			}
			for i := int32(0); i < j; i++ {
				V[I[k+i]] = k + j - 1
			}
			if j == 1 {
				I[k] = -1
			}
			k += j
		}
		return
	}

	x := V[I[start+length/2]+h]
	var jj, kk int32
	for i := start; i < start+length; i++ {
		if V[I[i]+h] < x {
			jj++
		}
		if V[I[i]+h] == x {
			kk++
		}
	}
	jj += start
	kk += jj

	i, j, k := start, int32(0), int32(0)
	for i < jj {
		switch {
		case V[I[i]+h] < x:
			i++
		case V[I[i]+h] == x:
			I[i], I[jj+j] = I[jj+j], I[i]
			j++
		default:
			I[i], I[kk+k] = I[kk+k], I[i]
			k++
		}
	}

	for jj+j < kk {
		if V[I[jj+j]+h] == x {
			j++
		} else {
			I[jj+j], I[kk+k] = I[kk+k], I[jj+j]
			k++
		}
	}

	if jj > start {
		split(I, V, start, jj-start, h)
	}

	for i := int32(0); i < kk-jj; i++ {
		V[I[jj+i]] = kk - 1
	}
	if jj == kk-1 {
		I[jj] = -1
	}

	if start+length > kk {
		split(I, V, kk, start+length-kk, h)
	}
}

// matchlen returns the length of the common prefix of a and b.
func matchlen(a, b []byte) int {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return i
}

// Search finds the longest prefix of target shared with some suffix
// of ref within I[st:en+1], via recursive binary search (spec §4.1).
// It returns the byte offset into ref and the length of the shared
// prefix. Ties between the two base-case candidates are broken
// toward the higher index, per spec.
func Search(I Index, ref, target []byte, st, en int) (pos, length int) {
	if en-st < 2 {
		x := matchlen(ref[I[st]:], target)
		y := matchlen(ref[I[en]:], target)
		if x > y {
			return int(I[st]), x
		}
		return int(I[en]), y
	}

	mid := st + (en-st)/2
	cmpLen := len(ref) - int(I[mid])
	if cmpLen > len(target) {
		cmpLen = len(target)
	}
	if bytes.Compare(ref[I[mid]:int(I[mid])+cmpLen], target[:cmpLen]) <= 0 {
		return Search(I, ref, target, mid, en)
	}
	return Search(I, ref, target, st, mid)
}
