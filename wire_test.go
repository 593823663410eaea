package ddelta

import (
	"math"
	"math/rand"
	"testing"
)

func TestPutGetUint32RoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 0x7FFFFFFF, 0x80000000, math.MaxUint32}
	for _, v := range cases {
		buf := make([]byte, 4)
		putUint32(buf, v)
		if got := getUint32(buf); got != v {
			t.Errorf("getUint32(putUint32(%d)) = %d", v, got)
		}
	}
}

func TestPutGetUint64RoundTrip(t *testing.T) {
	cases := []uint64{0, 1, math.MaxUint32, math.MaxUint64}
	for _, v := range cases {
		buf := make([]byte, 8)
		putUint64(buf, v)
		if got := getUint64(buf); got != v {
			t.Errorf("getUint64(putUint64(%d)) = %d", v, got)
		}
	}
}

func TestUint32IsBigEndian(t *testing.T) {
	buf := make([]byte, 4)
	putUint32(buf, 0x01020304)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("buf = %x, want %x", buf, want)
		}
	}
}

func TestEncodeDecodeSeekRoundTrip(t *testing.T) {
	cases := []int32{0, 1, -1, math.MaxInt32 - 1, math.MinInt32, 12345, -12345}
	for _, v := range cases {
		u := encodeSeek(v)
		got := decodeSeek(u)
		if got != v {
			t.Errorf("decodeSeek(encodeSeek(%d)) = %d", v, got)
		}
	}
}

func TestEncodeSeekRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		v := int32(rnd.Uint32())
		if v == flushSeek {
			continue
		}
		if got := decodeSeek(encodeSeek(v)); got != v {
			t.Fatalf("decodeSeek(encodeSeek(%d)) = %d", v, got)
		}
	}
}

func TestCRCAccumulatorMatchesSingleShot(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")

	var acc crcAccumulator
	acc.Update(data[:10])
	acc.Update(data[10:])

	want := crc32OfBytes(data)
	if acc.Sum() != want {
		t.Errorf("accumulated CRC = %d, want %d", acc.Sum(), want)
	}
}

func TestCRCAccumulatorEmpty(t *testing.T) {
	var acc crcAccumulator
	if acc.Sum() != 0 {
		t.Errorf("empty accumulator sum = %d, want 0", acc.Sum())
	}
}
