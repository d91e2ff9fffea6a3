package errs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad id %q", "X!"), KindValidation},
		{"not found", NotFound("agent %s", "ghost"), KindNotFound},
		{"authority", AuthorityDenied("actor %s outside chain", "intern"), KindAuthorityDenied},
		{"runtime sync", RuntimeSync("openclaw unreachable"), KindRuntimeSync},
		{"transient", Transient("busy"), KindTransient},
		{"cancelled", Cancelled("run aborted"), KindCancelled},
		{"fatal", Fatal("corrupt state"), KindFatal},
		{"bare context cancel", context.Canceled, KindCancelled},
		{"bare deadline", context.DeadlineExceeded, KindCancelled},
		{"unclassified", errors.New("whatever"), KindUnknown},
		{"nil", nil, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NotFound("task %s", "T-0a1b2c")
	outer := fmt.Errorf("update status: %w", inner)

	if got := KindOf(outer); got != KindNotFound {
		t.Errorf("KindOf(wrapped) = %v, want KindNotFound", got)
	}
	if !IsKind(outer, KindNotFound) {
		t.Error("IsKind(wrapped, KindNotFound) = false")
	}
}

func TestCauseStaysInChain(t *testing.T) {
	err := RuntimeSync("list agents: %w", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("underlying cause lost from chain")
	}
	if KindOf(err) != KindRuntimeSync {
		t.Errorf("KindOf = %v", KindOf(err))
	}
}

func TestKindString(t *testing.T) {
	if KindAuthorityDenied.String() != "AUTHORITY_DENIED" {
		t.Errorf("code = %q", KindAuthorityDenied.String())
	}
	if Kind(99).String() != "UNKNOWN" {
		t.Errorf("out-of-range kind = %q", Kind(99).String())
	}
}
