package ddelta

import (
	"errors"
	"io"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := io.ErrClosedPipe
	e := newErr(KindOldIO, "reading reference", cause)
	if !errors.Is(e, io.ErrClosedPipe) {
		t.Fatalf("errors.Is(e, io.ErrClosedPipe) = false")
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	e := newErr(KindAlgorithm, "negative record length", nil)
	want := "ddelta: algorithm: negative record length"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindOldIO:      "old-io",
		KindNewIO:      "new-io",
		KindPatchIO:    "patch-io",
		KindPatchShort: "patch-short",
		KindBadMagic:   "bad-magic",
		KindAlgorithm:  "algorithm",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestErrorsAsExtractsKind(t *testing.T) {
	err := error(newErr(KindPatchShort, "short patch", nil))
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatal("errors.As failed")
	}
	if derr.Kind != KindPatchShort {
		t.Errorf("Kind = %v, want KindPatchShort", derr.Kind)
	}
}
