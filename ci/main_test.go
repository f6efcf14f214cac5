//go:build ci
// +build ci

package main

import (
	"testing"

	"github.com/sidkik/lds/ci/sync"
)

// TestLds runs the integration tests. They require Linux, and rsync 3.0.0 or
// newer on the PATH.
func TestLds(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(*testing.T)
	}{
		{
			name:   "FileSync",
			testFn: sync.Test,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, test.testFn)
	}
}
