package suffixarray

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestBuildOrdersAllSuffixes(t *testing.T) {
	ref := []byte("abracadabra")
	I := Build(ref)

	if len(I) != len(ref)+1 {
		t.Fatalf("len(I) = %d, want %d", len(I), len(ref)+1)
	}

	for i := 1; i < len(I); i++ {
		a := ref[I[i-1]:]
		b := ref[I[i]:]
		if bytes.Compare(a, b) > 0 {
			t.Fatalf("suffix array out of order at %d: %q > %q", i, a, b)
		}
	}
}

func TestBuildEmptyReference(t *testing.T) {
	I := Build(nil)
	if len(I) != 1 {
		t.Fatalf("len(I) = %d, want 1", len(I))
	}
}

func TestSearchFindsExactMatch(t *testing.T) {
	ref := []byte("the quick brown fox jumps over the lazy dog")
	I := Build(ref)

	pos, length := Search(I, ref, []byte("brown fox"), 0, len(ref))
	if length != len("brown fox") {
		t.Fatalf("length = %d, want %d", length, len("brown fox"))
	}
	if !bytes.Equal(ref[pos:pos+length], []byte("brown fox")) {
		t.Fatalf("ref[%d:%d] = %q, want %q", pos, pos+length, ref[pos:pos+length], "brown fox")
	}
}

func TestSearchNoMatch(t *testing.T) {
	ref := []byte("aaaaaaaaaa")
	I := Build(ref)
	_, length := Search(I, ref, []byte("zzz"), 0, len(ref))
	if length != 0 {
		t.Fatalf("length = %d, want 0", length)
	}
}

func TestSearchAgainstEmptyReference(t *testing.T) {
	ref := []byte{}
	I := Build(ref)
	_, length := Search(I, ref, []byte("anything"), 0, len(ref))
	if length != 0 {
		t.Fatalf("length = %d, want 0", length)
	}
}

func TestBuildRandomInputs(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for trial := 0; trial < 20; trial++ {
		n := rnd.Intn(500)
		ref := make([]byte, n)
		rnd.Read(ref)
		I := Build(ref)
		for i := 1; i < len(I); i++ {
			if bytes.Compare(ref[I[i-1]:], ref[I[i]:]) > 0 {
				t.Fatalf("trial %d: suffix array out of order at %d", trial, i)
			}
		}
	}
}

func TestMatchlen(t *testing.T) {
	cases := []struct {
		a, b []byte
		want int
	}{
		{[]byte("abc"), []byte("abd"), 2},
		{[]byte(""), []byte("abc"), 0},
		{[]byte("abc"), []byte("abc"), 3},
		{[]byte("abcd"), []byte("ab"), 2},
	}
	for _, c := range cases {
		if got := matchlen(c.a, c.b); got != c.want {
			t.Errorf("matchlen(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
