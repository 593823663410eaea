package ddelta

import (
	"io"

	"github.com/ugorji/go/codec"
)

// BlockStat records one block's checksums, in emission order.
type BlockStat struct {
	Index  int
	OldCRC uint32
	NewCRC uint32
}

// PatchStats summarizes a single Generate call: sizes, block
// boundaries and per-block checksums. Nothing in the core generator
// needs it — it exists purely so `ddeltadiff --stats` can report on
// a patch without a second pass over the stream, the way the
// teacher's proto.go used ugorji/go/codec to wire-encode its request
// and response headers.
type PatchStats struct {
	OldSize    uint64
	NewSize    uint64
	BlockSize  int
	DiffBytes  uint64
	ExtraBytes uint64
	Blocks     []BlockStat
}

// WriteStats msgpack-encodes stats to w via ugorji/go/codec, the
// library the teacher used for its own wire structures.
func WriteStats(w io.Writer, stats *PatchStats) error {
	var mh codec.MsgpackHandle
	enc := codec.NewEncoder(w, &mh)
	return enc.Encode(stats)
}

// ReadStats decodes a PatchStats previously written by WriteStats.
func ReadStats(r io.Reader) (*PatchStats, error) {
	var mh codec.MsgpackHandle
	dec := codec.NewDecoder(r, &mh)
	stats := new(PatchStats)
	if err := dec.Decode(stats); err != nil {
		return nil, err
	}
	return stats, nil
}
