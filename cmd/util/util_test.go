package util

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidkik/lds/pkg/errors"
)

func mockExit(t *testing.T) (*bytes.Buffer, *int) {
	var out bytes.Buffer
	code := -1
	stderr = &out
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr = os.Stderr
		exit = os.Exit
	})
	return &out, &code
}

func TestHandleFatalError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expOut string
	}{
		{
			name:   "ContextChain",
			err:    errors.WithContext(errors.New("permission denied"), "watch source"),
			expOut: "Error: watch source: permission denied\n",
		},
		{
			name:   "Friendly",
			err:    errors.WithContext(errors.CapacityExceeded{Capacity: 8192}, "walk source"),
			expOut: "Error: " + errors.CapacityExceeded{}.FriendlyMessage() + "\n",
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			out, code := mockExit(t)
			HandleFatalError(test.err)
			assert.Equal(t, 1, *code)
			assert.Equal(t, test.expOut, out.String())
		})
	}
}

func TestHandlePanic(t *testing.T) {
	out, code := mockExit(t)
	func() {
		defer HandlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, *code)
	assert.Equal(t, "lds crashed: boom\n", out.String())

	// Returning normally doesn't exit.
	*code = -1
	func() {
		defer HandlePanic()
	}()
	assert.Equal(t, -1, *code)
}
