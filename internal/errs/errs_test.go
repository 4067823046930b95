package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      &Error{Code: CodeMalformedInput, Message: "missing Plan root"},
			expected: "MALFORMED_INPUT: missing Plan root",
		},
		{
			name:     "with cause",
			err:      &Error{Code: CodeRenderFailed, Message: "write dot", Cause: fmt.Errorf("disk full")},
			expected: "RENDER_FAILED: write dot: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "nothing"))
	assert.Nil(t, Wrapf(nil, CodeInternal, "nothing %d", 1))

	cause := errors.New("boom")
	err := Wrapf(cause, CodeQueryFailed, "query %s", "explain")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Error{Code: CodeQueryFailed})
	assert.NotErrorIs(t, err, ErrMalformedInput)
	assert.Equal(t, "QUERY_FAILED: query explain: boom", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeOf(fmt.Errorf("outer: %w", New(CodeNotFound, "render"))))
	assert.Equal(t, CodeMalformedInput, CodeOf(Newf(CodeMalformedInput, "node %s", "0.1")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeInternal, CodeOf(nil))
}
