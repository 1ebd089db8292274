package coredump

import (
	"testing"

	"github.com/memfault/diagsdk/internal/sdkerr"
)

func TestRunStorageSelfTestPassesOnHealthyDriver(t *testing.T) {
	d := NewDebugStorage(64, 16, FailureNone)
	if err := RunStorageSelfTest(d); err != nil {
		t.Errorf("expected a healthy driver to pass, got %v", err)
	}
}

func TestRunStorageSelfTestCatchesEachFailureMode(t *testing.T) {
	cases := []struct {
		name string
		mode FailureMode
		code sdkerr.Code
	}{
		{"write errors", FailureWriteAlwaysErrors, sdkerr.CodeStorageError},
		{"read errors", FailureReadAlwaysErrors, sdkerr.CodeStorageError},
		{"erase errors", FailureEraseAlwaysErrors, sdkerr.CodeStorageError},
		{"silent write no-op", FailureWriteSilentNoOp, sdkerr.CodeIntegrityError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := NewDebugStorage(64, 16, c.mode)
			err := RunStorageSelfTest(d)
			if err == nil {
				t.Fatalf("expected failure mode %v to be caught", c.mode)
			}
			if !sdkerr.Is(err, c.code) {
				t.Errorf("got error %v, want code %v", err, c.code)
			}
		})
	}
}
