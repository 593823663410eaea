package ddelta

import (
	"bytes"
	"reflect"
	"testing"
)

func TestWriteReadStatsRoundTrip(t *testing.T) {
	stats := &PatchStats{
		OldSize:    100,
		NewSize:    120,
		BlockSize:  64,
		DiffBytes:  80,
		ExtraBytes: 20,
		Blocks: []BlockStat{
			{Index: 0, OldCRC: 111, NewCRC: 222},
			{Index: 1, OldCRC: 333, NewCRC: 444},
		},
	}

	var buf bytes.Buffer
	if err := WriteStats(&buf, stats); err != nil {
		t.Fatalf("WriteStats: %v", err)
	}

	got, err := ReadStats(&buf)
	if err != nil {
		t.Fatalf("ReadStats: %v", err)
	}
	if !reflect.DeepEqual(got, stats) {
		t.Fatalf("got %+v, want %+v", got, stats)
	}
}
