package ddelta

import "io"

const headerSize = len(magic) + 8 // magic + new_file_size
const recordSize = 4 + 4 + 4      // diff + extra + seek, packed with no padding

// recordKind classifies a decoded record header.
type recordKind int

const (
	recNormal recordKind = iota
	recFlush
	recEnd
)

// record is the decoded form of one 12-byte record header. Only the
// fields relevant to Kind are meaningful: diff/extra/seek for
// recNormal, oldcrc/newcrc for recFlush, nothing for recEnd.
type record struct {
	kind          recordKind
	diff, extra   uint32
	seek          int32
	oldcrc        uint32
	newcrc        uint32
}

func writeHeader(w io.Writer, newFileSize uint64) error {
	buf := make([]byte, headerSize)
	copy(buf, magic[:])
	putUint64(buf[len(magic):], newFileSize)
	_, err := w.Write(buf)
	return err
}

// readHeader reads and validates the file header, returning the
// declared new_file_size.
func readHeader(r io.Reader) (uint64, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, err
	}
	for i := range magic {
		if buf[i] != magic[i] {
			return 0, newErr(KindBadMagic, "header magic mismatch", nil)
		}
	}
	return getUint64(buf[len(magic):]), nil
}

func writeNormalRecord(w io.Writer, diff, extra uint32, seek int32) error {
	if int32(seek) == flushSeek {
		return newErr(KindAlgorithm, "computed seek collides with FLUSH sentinel", nil)
	}
	buf := make([]byte, recordSize)
	putUint32(buf[0:4], diff)
	putUint32(buf[4:8], extra)
	putUint32(buf[8:12], encodeSeek(seek))
	_, err := w.Write(buf)
	return err
}

func writeFlushRecord(w io.Writer, oldcrc, newcrc uint32) error {
	buf := make([]byte, recordSize)
	putUint32(buf[0:4], oldcrc)
	putUint32(buf[4:8], newcrc)
	putUint32(buf[8:12], uint32(flushSeek))
	_, err := w.Write(buf)
	return err
}

func writeEndRecord(w io.Writer) error {
	buf := make([]byte, recordSize)
	_, err := w.Write(buf)
	return err
}

// readRecord decodes the next 12-byte record header from the patch
// stream and classifies it per spec §6: all-zero is END, seek ==
// FLUSH is a flush carrying two CRCs in place of diff/extra, anything
// else is a normal differential/literal/seek record.
func readRecord(r io.Reader) (record, error) {
	buf := make([]byte, recordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return record{}, err
	}
	word0 := getUint32(buf[0:4])
	word1 := getUint32(buf[4:8])
	word2 := getUint32(buf[8:12])

	if word0 == 0 && word1 == 0 && word2 == 0 {
		return record{kind: recEnd}, nil
	}
	if word2 == uint32(flushSeek) {
		return record{kind: recFlush, oldcrc: word0, newcrc: word1}, nil
	}
	return record{
		kind:  recNormal,
		diff:  word0,
		extra: word1,
		seek:  decodeSeek(word2),
	}, nil
}
