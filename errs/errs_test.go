package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProcessingErrorMatchesByCode(t *testing.T) {
	err := Wrap(ErrDecode, errors.New("bad huffman table"))
	wrapped := fmt.Errorf("analyze: %w", err)

	assert.True(t, errors.Is(wrapped, ErrDecode))
	assert.False(t, errors.Is(wrapped, ErrEncode))
	assert.Equal(t, CodeDecode, CodeOf(wrapped))
	assert.Equal(t, "tensor decode failed: bad huffman table", err.Error())
}

func TestProcessingErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("disk gone")
	err := New(CodeTransform, "write normalized image", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransform)
}

func TestPermanentCodes(t *testing.T) {
	assert.True(t, IsPermanent(Wrap(ErrModelLoad, errors.New("missing file"))))
	assert.True(t, IsPermanent(ErrBackendInit))
	assert.False(t, IsPermanent(ErrInference))
	assert.False(t, IsPermanent(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
}
