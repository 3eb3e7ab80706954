package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	err := New(KindNotFound, "business %s not found", "CP0001234").At("CP0001234", 140)
	assert.Equal(t, "NOT_FOUND: business CP0001234 not found (corp=CP0001234, event=140)", err.Error())

	wrapped := Wrap(KindTransaction, errors.New("disk full"), "apply filing")
	assert.Equal(t, "TRANSACTION: apply filing: disk full", wrapped.Error())
}

func TestKindOf_Wrapped(t *testing.T) {
	base := New(KindInvalidFilingType, "unknown code %q", "ZZZZZ")
	err := fmt.Errorf("reconstruct: %w", base)

	assert.Equal(t, KindInvalidFilingType, KindOf(err))
	assert.True(t, IsInvalidFilingType(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestSkippable(t *testing.T) {
	assert.True(t, Skippable(New(KindNotFound, "x")))
	assert.True(t, Skippable(New(KindInvalidFilingType, "x")))
	assert.True(t, Skippable(New(KindDataIntegrity, "x")))
	assert.False(t, Skippable(New(KindTransaction, "x")))
	assert.False(t, Skippable(New(KindTimeout, "x")))
	assert.False(t, Skippable(nil))
}

func TestAt_DoesNotMutateOriginal(t *testing.T) {
	base := New(KindNotFound, "x")
	_ = base.At("CP1", 1)
	assert.Empty(t, base.CorpNum)
}
