package errors

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	original := New("original")
	wrapped := Wrap(original, "wrapped")

	assert.Contains(t, wrapped.Error(), "wrapped")
	assert.Contains(t, wrapped.Error(), "original")
	assert.True(t, Is(wrapped, original))
}

func TestWithHint(t *testing.T) {
	err := New("error")
	withHint := WithHint(err, "try this fix")

	hints := GetAllHints(withHint)
	require.Len(t, hints, 1)
	assert.Equal(t, "try this fix", hints[0])
}

func TestStackTrace(t *testing.T) {
	err := New("with stack")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "errors_test.go")
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WrapStore(nil, "context"))
	assert.Nil(t, WrapDecode(nil, "context"))
}

func TestDimensionMismatch(t *testing.T) {
	t.Run("matches sentinel through wrapping", func(t *testing.T) {
		err := NewDimensionMismatch(int64(42), 256, 255)
		err = Wrap(err, "fetch embeddings")

		assert.True(t, Is(err, ErrDimensionMismatch))
		assert.True(t, IsDimensionMismatch(err))
		assert.False(t, IsDecodeError(err))
		assert.Contains(t, err.Error(), "id=42")
		assert.Contains(t, err.Error(), "expected 256, got 255")
	})

	t.Run("exposes row id and sizes via As", func(t *testing.T) {
		err := Wrap(NewDimensionMismatch("row-7", 3, 5), "decode")

		var dm *DimensionMismatchError
		require.True(t, As(err, &dm))
		assert.Equal(t, "row-7", dm.ID)
		assert.Equal(t, 3, dm.Expected)
		assert.Equal(t, 5, dm.Actual)
	})

	t.Run("omits id when unknown", func(t *testing.T) {
		err := &DimensionMismatchError{Expected: 2, Actual: 1}
		assert.Equal(t, "embedding size mismatch: expected 2, got 1", err.Error())
	})
}

func TestWrapStore(t *testing.T) {
	err := WrapStore(sql.ErrConnDone, "commit assignments for %s", "embeddings")

	assert.True(t, IsStoreError(err))
	assert.True(t, Is(err, sql.ErrConnDone), "original driver error must stay reachable")
	assert.Contains(t, err.Error(), "commit assignments for embeddings")
	assert.NotNil(t, GetStack(err))
}

func TestDecodeErrors(t *testing.T) {
	err := NewDecodeError("unsupported raw vector type %T", struct{}{})
	assert.True(t, IsDecodeError(err))
	assert.False(t, IsDimensionMismatch(err))
	assert.False(t, IsStoreError(err))

	wrapped := WrapDecode(New("unexpected end of JSON input"), "parse id=%d", 3)
	assert.True(t, IsDecodeError(wrapped))
	assert.Contains(t, wrapped.Error(), "parse id=3")
}

func ExampleWrap() {
	baseErr := New("connection failed")
	err := Wrap(baseErr, "failed to connect to database")
	fmt.Println(err)
	// Output: failed to connect to database: connection failed
}
