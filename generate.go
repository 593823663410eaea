package ddelta

import (
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ftao/ddelta/internal/suffixarray"
)

// maxFileSize is the 2^31-1 byte cap spec §1 places on both the
// reference and the target.
const maxFileSize = math.MaxInt32

// fuzz and stallLimit are the score-extension heuristic's tuning
// constants, inherited from the original implementation. Changing
// them changes the bytes of the emitted patch but not its
// correctness (spec "Design notes").
const (
	fuzz       = 8
	stallLimit = 100
)

// GenerateOptions configures Generate. The zero value is valid: a
// zero or negative BlockSize means "one block covering the whole
// target", and a nil Log discards diagnostics.
type GenerateOptions struct {
	BlockSize int
	Log       *logrus.Logger

	// Stats, if non-nil, is populated with per-block statistics as
	// Generate runs (see stats.go). Left nil, no bookkeeping beyond
	// what the patch stream itself carries is done.
	Stats *PatchStats
}

// Generate computes a ddelta patch transforming old into new and
// writes it to patch. It implements the scan-and-emit loop of spec
// §4.2: a suffix-array search locates candidate matches, the
// score-extension heuristic decides where each record begins and
// ends, and a flush record closes each block boundary.
func Generate(old, new []byte, patch io.Writer, opts GenerateOptions) error {
	if len(old) > maxFileSize {
		return newErr(KindOldIO, "reference exceeds 2^31-1 bytes", nil)
	}
	if len(new) > maxFileSize {
		return newErr(KindNewIO, "target exceeds 2^31-1 bytes", nil)
	}

	newsize := len(new)
	oldsize := len(old)

	// Work on a private copy of old: the block overlay below writes
	// into it, and the caller's slice is left untouched. Reference <=
	// target growth (spec §9): the copy is padded with zeros up to
	// len(new) before any suffix array is built, so search ranges are
	// always valid against the grown buffer.
	inputOldSize := oldsize
	bufsize := max(oldsize, newsize)
	grown := make([]byte, bufsize)
	copy(grown, old)
	old = grown
	oldsize = bufsize

	blocksize := opts.BlockSize
	if blocksize <= 0 {
		blocksize = newsize
	}
	if blocksize == 0 {
		blocksize = 1 // avoid a zero-size block advancing nothing when new is also empty
	}

	if err := writeHeader(patch, uint64(newsize)); err != nil {
		return newErr(KindPatchIO, "writing file header", err)
	}
	if opts.Stats != nil {
		opts.Stats.OldSize = uint64(inputOldSize)
		opts.Stats.NewSize = uint64(newsize)
		opts.Stats.BlockSize = blocksize
	}

	var scan, pos, length int
	var lastscan, lastpos, lastoffset int
	scansize := min(blocksize, newsize)

	for {
		I := suffixarray.Build(old[:oldsize])

		length = 0
		var oldcrc, newcrc crcAccumulator

		for scan < scansize {
			oldscore := 0
			scan += length
			scsc := scan
			numStall := 0

			for scan < scansize {
				prevLen, prevOldscore, prevPos := length, oldscore, pos

				pos, length = suffixarray.Search(I, old[:oldsize], new[scan:scansize], 0, oldsize)

				for ; scsc < scan+length; scsc++ {
					if scsc+lastoffset < oldsize && old[scsc+lastoffset] == new[scsc] {
						oldscore++
					}
				}

				if (length == oldscore && length != 0) || length > oldscore+fuzz {
					break
				}

				if scan+lastoffset < oldsize && old[scan+lastoffset] == new[scan] {
					oldscore--
				}

				if prevLen-fuzz <= length && length <= prevLen &&
					prevOldscore-fuzz <= oldscore && oldscore <= prevOldscore &&
					prevPos <= pos && pos <= prevPos+fuzz &&
					oldscore <= length && length <= oldscore+fuzz {
					numStall++
				} else {
					numStall = 0
				}
				if numStall > stallLimit {
					break
				}

				scan++
			}

			if length != oldscore || scan == scansize {
				lenf := forwardExtend(old, new, lastscan, lastpos, scan, oldsize)

				lenb := 0
				if scan < scansize {
					lenb = backwardExtend(old, new, lastscan, scan, pos)
				}

				if lastscan+lenf > scan-lenb {
					lenf, lenb = resolveOverlap(old, new, lastscan, lastpos, scan, pos, lenf, lenb)
				}

				extra := (scan - lenb) - (lastscan + lenf)
				if lenf < 0 || extra < 0 {
					return newErr(KindAlgorithm, "negative record length", nil)
				}
				seek64 := (pos - lenb) - (lastpos + lenf)
				if seek64 < math.MinInt32 || seek64 > math.MaxInt32 {
					return newErr(KindAlgorithm, "seek overflow", nil)
				}

				if err := writeNormalRecord(patch, uint32(lenf), uint32(extra), int32(seek64)); err != nil {
					return err
				}
				if err := writeDiffBytes(patch, new, old, lastscan, lastpos, lenf); err != nil {
					return err
				}
				if extra > 0 {
					if _, err := patch.Write(new[lastscan+lenf : lastscan+lenf+extra]); err != nil {
						return newErr(KindPatchIO, "writing extra bytes", err)
					}
				}

				oldcrc.Update(old[lastpos : lastpos+lenf])
				newcrc.Update(new[lastscan : scan-lenb])

				if opts.Stats != nil {
					opts.Stats.DiffBytes += uint64(lenf)
					opts.Stats.ExtraBytes += uint64(extra)
				}

				lastscan = scan - lenb
				lastpos = pos - lenb
				lastoffset = pos - scan
			}
		}

		if err := writeFlushRecord(patch, oldcrc.Sum(), newcrc.Sum()); err != nil {
			return err
		}
		if opts.Log != nil {
			opts.Log.WithFields(logrus.Fields{
				"block":  scansize,
				"oldcrc": oldcrc.Sum(),
				"newcrc": newcrc.Sum(),
			}).Debug("ddelta: emitted block")
		}
		if opts.Stats != nil {
			opts.Stats.Blocks = append(opts.Stats.Blocks, BlockStat{
				Index:  len(opts.Stats.Blocks),
				OldCRC: oldcrc.Sum(),
				NewCRC: newcrc.Sum(),
			})
		}

		if scan >= newsize {
			break
		}

		blockStart := scansize - blocksize
		if blockStart < 0 {
			blockStart = 0
		}
		copy(old[blockStart:scansize], new[blockStart:scansize])
		if scansize > oldsize {
			oldsize = scansize
		}
		next := scansize + blocksize
		if next > newsize {
			next = newsize
		}
		scansize = next
	}

	return writeEndRecord(patch)
}

// forwardExtend scans forward from (lastscan, lastpos) tracking the
// index i* that maximizes 2*S - i, S the count of matching bytes
// (spec §4.2 "Forward extension").
func forwardExtend(old, new []byte, lastscan, lastpos, scan, oldsize int) int {
	s, best, leni := 0, 0, 0
	i := 0
	for lastscan+i < scan && lastpos+i < oldsize {
		if old[lastpos+i] == new[lastscan+i] {
			s++
		}
		i++
		if s*2-i > best*2-leni {
			best = s
			leni = i
		}
	}
	return leni
}

// backwardExtend scans backward from (scan, pos) tracking the index
// i* that maximizes 2*S - i (spec §4.2 "Backward extension").
func backwardExtend(old, new []byte, lastscan, scan, pos int) int {
	s, best, leni := 0, 0, 0
	for i := 1; scan >= lastscan+i && pos >= i; i++ {
		if old[pos-i] == new[scan-i] {
			s++
		}
		if s*2-i > best*2-leni {
			best = s
			leni = i
		}
	}
	return leni
}

// resolveOverlap picks the split point within an overlapping
// forward/backward extension that maximizes forward matches minus
// backward matches (spec §4.2 "Overlap correction").
func resolveOverlap(old, new []byte, lastscan, lastpos, scan, pos, lenf, lenb int) (newLenf, newLenb int) {
	overlap := (lastscan + lenf) - (scan - lenb)
	s, best, split := 0, 0, 0
	for i := 0; i < overlap; i++ {
		if new[lastscan+lenf-overlap+i] == old[lastpos+lenf-overlap+i] {
			s++
		}
		if new[scan-lenb+i] == old[pos-lenb+i] {
			s--
		}
		if s > best {
			best = s
			split = i + 1
		}
	}
	return lenf + split - overlap, lenb - split
}

func writeDiffBytes(w io.Writer, new, old []byte, lastscan, lastpos, lenf int) error {
	if lenf == 0 {
		return nil
	}
	buf := make([]byte, lenf)
	for i := 0; i < lenf; i++ {
		buf[i] = new[lastscan+i] - old[lastpos+i]
	}
	if _, err := w.Write(buf); err != nil {
		return newErr(KindPatchIO, "writing diff bytes", err)
	}
	return nil
}

