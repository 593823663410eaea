package ddelta

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ApplyOptions configures Apply. The zero value is valid.
type ApplyOptions struct {
	Log *logrus.Logger
}

// applyState carries the decode loop's running counters: bytes
// written so far (across the whole stream, spec §3 "Applier state"),
// and the oldcrc accumulator for the block currently in progress.
type applyState struct {
	old          *os.File
	patch        io.Reader
	bytesWritten uint64
	newFileSize  uint64
	oldcrc       crcAccumulator
}

// applyDiff executes the differential phase of a normal record: read
// n bytes from the patch, read n bytes from the reference, add
// componentwise mod 256, write to out, and fold the reference bytes
// into oldcrc (spec §4.3). Reference bytes past its end read as
// zeros, matching the zero padding Generate gives a reference that
// is shorter than the target.
func (s *applyState) applyDiff(out io.Writer, n uint32) error {
	if n == 0 {
		return nil
	}
	diffBuf := make([]byte, n)
	if _, err := io.ReadFull(s.patch, diffBuf); err != nil {
		return newErr(KindPatchIO, "reading differential bytes", err)
	}
	refBuf := make([]byte, n)
	got, err := io.ReadFull(s.old, refBuf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// Keep the cursor where a full read would have left it.
		_, err = s.old.Seek(int64(len(refBuf)-got), io.SeekCurrent)
	}
	if err != nil {
		return newErr(KindOldIO, "reading reference bytes", err)
	}
	s.oldcrc.Update(refBuf)
	for i := range diffBuf {
		diffBuf[i] += refBuf[i]
	}
	if _, err := out.Write(diffBuf); err != nil {
		return newErr(KindNewIO, "writing differential output", err)
	}
	return nil
}

// copyLiteral executes the literal phase: n bytes copied verbatim
// from the patch to the output.
func (s *applyState) copyLiteral(out io.Writer, n uint32) error {
	if n == 0 {
		return nil
	}
	if _, err := io.CopyN(out, s.patch, int64(n)); err != nil {
		return newErr(KindPatchIO, "reading literal bytes", err)
	}
	return nil
}

// seekReference executes the seek phase: the reference cursor is
// advanced by a signed offset, which may be negative.
func (s *applyState) seekReference(delta int32) error {
	if delta == 0 {
		return nil
	}
	if _, err := s.old.Seek(int64(delta), io.SeekCurrent); err != nil {
		return newErr(KindOldIO, "seeking reference", err)
	}
	return nil
}

// Apply reconstructs the target described by patch against old,
// writing it to newPathOrDir. If newPathOrDir names a directory, the
// applier assembles each block in a temporary file and, at every
// flush, reconciles it against the per-block checksums using the
// filesystem-resident block cache described in spec §4.3; otherwise
// it streams directly into the named file with no per-block recovery
// (there is nowhere to recover from).
func Apply(oldPath, patchPath, newPathOrDir string, opts ApplyOptions) error {
	old, err := os.OpenFile(oldPath, os.O_RDWR, 0)
	if err != nil {
		return newErr(KindOldIO, "opening reference", err)
	}
	defer old.Close()

	if info, err := old.Stat(); err == nil && info.Size() > maxFileSize {
		return newErr(KindOldIO, "reference exceeds 2^31-1 bytes", nil)
	}

	patchFile, err := os.Open(patchPath)
	if err != nil {
		return newErr(KindPatchIO, "opening patch", err)
	}
	defer patchFile.Close()

	newFileSize, err := readHeader(patchFile)
	if err != nil {
		var derr *Error
		if errors.As(err, &derr) {
			return err
		}
		return newErr(KindPatchIO, "reading file header", err)
	}

	if info, statErr := os.Stat(newPathOrDir); statErr == nil && info.IsDir() {
		return applyToDir(old, patchFile, newPathOrDir, newFileSize, opts)
	}
	return applyToFile(old, patchFile, newPathOrDir, newFileSize, opts)
}

// nextRecord reads one record header, translating a bare EOF (the
// stream ended without an END sentinel) into patch-short per spec §7.
func nextRecord(r io.Reader) (record, error) {
	rec, err := readRecord(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return record{}, newErr(KindPatchShort, "patch stream ended before an END sentinel", err)
		}
		return record{}, newErr(KindPatchIO, "reading record header", err)
	}
	return rec, nil
}

func applyToFile(old *os.File, patch io.Reader, outPath string, newFileSize uint64, opts ApplyOptions) error {
	out, err := os.Create(outPath)
	if err != nil {
		return newErr(KindNewIO, "creating output file", err)
	}
	defer out.Close()

	st := &applyState{old: old, patch: patch, newFileSize: newFileSize}

	for {
		rec, err := nextRecord(patch)
		if err != nil {
			return err
		}

		switch rec.kind {
		case recEnd:
			if err := out.Sync(); err != nil {
				return newErr(KindNewIO, "fsync output file", err)
			}
			if st.bytesWritten != newFileSize {
				return newErr(KindPatchShort, "fewer bytes produced than new_file_size", nil)
			}
			return nil

		case recFlush:
			// No block cache outside directory mode: nothing to
			// reconcile, just start a fresh accumulator.
			st.oldcrc = crcAccumulator{}
			if opts.Log != nil {
				opts.Log.WithField("bytesWritten", st.bytesWritten).Debug("ddelta: flush (no-op, file mode)")
			}

		default:
			if err := st.applyDiff(out, rec.diff); err != nil {
				return err
			}
			if err := st.copyLiteral(out, rec.extra); err != nil {
				return err
			}
			if err := st.seekReference(rec.seek); err != nil {
				return err
			}
			st.bytesWritten += uint64(rec.diff) + uint64(rec.extra)
		}
	}
}

func applyToDir(old *os.File, patch io.Reader, dir string, newFileSize uint64, opts ApplyOptions) error {
	cache, err := openBlockCache(filepath.Join(dir, ".ddelta-cache"))
	if err != nil {
		return err
	}

	// Suffixing with a UUID rather than a bare fixed name avoids
	// collision with a concurrently-running (or crashed and retried)
	// applier targeting the same directory; the single-writer
	// restriction on any one invocation still holds.
	tmpPath := filepath.Join(dir, "ddelta-"+uuid.NewString()+".tmp")
	os.Remove(tmpPath)
	blockFile, err := os.Create(tmpPath)
	if err != nil {
		return newErr(KindNewIO, "creating block file", err)
	}

	st := &applyState{old: old, patch: patch, newFileSize: newFileSize}
	blockStart := uint64(0)

	closeAndRemove := func() {
		blockFile.Close()
		os.Remove(tmpPath)
	}

	for {
		rec, err := nextRecord(patch)
		if err != nil {
			closeAndRemove()
			return err
		}

		switch rec.kind {
		case recEnd:
			closeAndRemove()
			if st.bytesWritten != newFileSize {
				return newErr(KindPatchShort, "fewer bytes produced than new_file_size", nil)
			}
			return nil

		case recFlush:
			if err := blockFile.Sync(); err != nil {
				closeAndRemove()
				return newErr(KindNewIO, "fsync block file", err)
			}
			if err := blockFile.Close(); err != nil {
				os.Remove(tmpPath)
				return newErr(KindNewIO, "closing block file", err)
			}

			matched := st.oldcrc.Sum() == rec.oldcrc
			if matched {
				if err := cache.Promote(tmpPath, rec.newcrc); err != nil {
					return err
				}
			} else if opts.Log != nil {
				opts.Log.WithFields(logrus.Fields{
					"want": rec.oldcrc,
					"got":  st.oldcrc.Sum(),
				}).Warn("ddelta: block reference checksum mismatch, attempting cache recovery")
			}

			if cachedPath, ok := cache.Lookup(rec.newcrc); ok {
				if err := spliceBlock(old, cachedPath, blockStart, st.bytesWritten, rec.newcrc); err != nil {
					return err
				}
			} else if !matched {
				return newErr(KindAlgorithm, "block checksum mismatch with no cached alternate available", nil)
			}

			os.Remove(tmpPath)
			blockFile, err = os.Create(tmpPath)
			if err != nil {
				return newErr(KindNewIO, "creating block file", err)
			}
			st.oldcrc = crcAccumulator{}
			blockStart = st.bytesWritten

		default:
			if err := st.applyDiff(blockFile, rec.diff); err != nil {
				closeAndRemove()
				return err
			}
			if err := st.copyLiteral(blockFile, rec.extra); err != nil {
				closeAndRemove()
				return err
			}
			if err := st.seekReference(rec.seek); err != nil {
				closeAndRemove()
				return err
			}
			st.bytesWritten += uint64(rec.diff) + uint64(rec.extra)
		}
	}
}

// spliceBlock copies a cached block's contents into old (the
// reference file) at [start, end), verifying the spliced bytes'
// CRC-32 against wantCRC, then restores old's cursor. This mirrors
// the generator's block-boundary step of overlaying the
// just-reconstructed target block onto the reference (spec §4.2):
// the applier must reproduce that overlay on its own copy of the
// reference so later blocks' seeks land on the bytes the generator
// assumed were there.
func spliceBlock(old *os.File, cachedPath string, start, end uint64, wantCRC uint32) error {
	origin, err := old.Seek(0, io.SeekCurrent)
	if err != nil {
		return newErr(KindOldIO, "saving reference cursor", err)
	}
	if _, err := old.Seek(int64(start), io.SeekStart); err != nil {
		return newErr(KindOldIO, "seeking reference for splice", err)
	}

	cached, err := os.Open(cachedPath)
	if err != nil {
		return newErr(KindNewIO, "opening cached block", err)
	}
	defer cached.Close()

	var crc crcAccumulator
	buf := make([]byte, 32*1024)
	remaining := end - start
	for remaining > 0 {
		n := uint64(len(buf))
		if remaining < n {
			n = remaining
		}
		if _, err := io.ReadFull(cached, buf[:n]); err != nil {
			return newErr(KindNewIO, "reading cached block", err)
		}
		crc.Update(buf[:n])
		if _, err := old.Write(buf[:n]); err != nil {
			return newErr(KindOldIO, "writing spliced block into reference", err)
		}
		remaining -= n
	}

	if crc.Sum() != wantCRC {
		return newErr(KindAlgorithm, "spliced block checksum mismatch", nil)
	}

	if err := old.Sync(); err != nil {
		return newErr(KindOldIO, "fsync reference after splice", err)
	}
	if _, err := old.Seek(origin, io.SeekStart); err != nil {
		return newErr(KindOldIO, "restoring reference cursor", err)
	}
	return nil
}
