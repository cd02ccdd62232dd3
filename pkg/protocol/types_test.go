package protocol

import "testing"

func TestKind_String(t *testing.T) {
	t.Parallel()

	cases := map[Kind]string{
		KindGet:     "get",
		KindSet:     "set",
		KindDelete:  "delete",
		KindStats:   "stats",
		KindVersion: "version",
		Kind(200):   "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestKind_NotRateLimited(t *testing.T) {
	t.Parallel()

	exempt := []Kind{KindStats, KindVersion, KindShutdown}
	for _, k := range exempt {
		if !k.NotRateLimited() {
			t.Errorf("%s should bypass admission throttling", k)
		}
	}
	limited := []Kind{KindGet, KindSet, KindDelete, KindTouch}
	for _, k := range limited {
		if k.NotRateLimited() {
			t.Errorf("%s should be subject to admission throttling", k)
		}
	}
}

func TestResult_IsError(t *testing.T) {
	t.Parallel()

	for _, r := range []Result{ResultBusy, ResultLocalError, ResultRemoteError, ResultTimeout} {
		if !r.IsError() {
			t.Errorf("%s should be an error result", r)
		}
	}
	for _, r := range []Result{ResultOK, ResultStored, ResultNotFound, ResultDeleted} {
		if r.IsError() {
			t.Errorf("%s should not be an error result", r)
		}
	}
}

func TestPriority_Valid(t *testing.T) {
	t.Parallel()

	if !PriorityHigh.Valid() || !PriorityNormal.Valid() || !PriorityLow.Valid() {
		t.Fatal("defined priorities must be valid")
	}
	if Priority(-1).Valid() || Priority(NumPriorities).Valid() {
		t.Fatal("out-of-range priorities must be invalid")
	}
}
