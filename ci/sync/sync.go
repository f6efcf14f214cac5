package sync

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/lds/ci/util"
)

const syncTimeout = 30 * time.Second

// Test checks that changes to the source are mirrored into the destination.
func Test(t *testing.T) {
	t.Run("InitialSync", testInitialSync)
	t.Run("FileChange", testFileChange)
	t.Run("Ignore", testIgnore)
}

func testInitialSync(t *testing.T) {
	helper, err := util.NewTestHelper(nil)
	require.NoError(t, err)
	defer helper.Stop()

	require.NoError(t, sequence(
		createFile(randomFile("top")),
		createFile(randomFile("dir/nested/deep")),
		makeDir("empty"),
	)(helper))

	// Stale files in the destination are removed by the initial sync.
	require.NoError(t, ioutil.WriteFile(filepath.Join(helper.Destination, "stale"), []byte("stale"), 0644))

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	require.NoError(t, helper.Start(ctx))

	_, err = os.Stat(filepath.Join(helper.Destination, "stale"))
	assert.True(t, os.IsNotExist(err))
}

func testFileChange(t *testing.T) {
	refFile := randomFile("dir/test-file")

	tests := []struct {
		name   string
		change fsOp
	}{
		{
			name:   "CreateFile",
			change: createFile(randomFile("new-file")),
		},
		{
			name:   "ChangeContents",
			change: createFile(refFile.WithContents("changed contents")),
		},
		{
			name:   "AppendContents",
			change: appendFile(refFile.path, "appended contents"),
		},
		{
			name:   "Truncate",
			change: truncateFile(refFile.path, 2),
		},
		{
			name:   "RenameFile",
			change: renamePath(refFile.path, "renamed-file"),
		},
		{
			name:   "RemoveFile",
			change: removePath(refFile.path),
		},
		{
			name:   "CreateTree",
			change: createFile(randomFile("a/b/c/d")),
		},
		{
			name: "RenameDirectory",
			change: sequence(
				createFile(randomFile("old-dir/child")),
				renamePath("old-dir", "new-dir"),
				createFile(randomFile("new-dir/after-rename")),
			),
		},
		{
			name:   "RemoveDirectory",
			change: removePath("dir"),
		},
		{
			name:   "Symlink",
			change: symlink("/etc/passwd", "link"),
		},
	}

	helper, err := util.NewTestHelper(nil)
	require.NoError(t, err)
	defer helper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	require.NoError(t, helper.Start(ctx))

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			testCtx, cancel := context.WithTimeout(context.Background(), syncTimeout)
			defer cancel()

			require.NoError(t, createFile(refFile)(helper))
			require.NoError(t, helper.WaitUntilSynced(testCtx))

			require.NoError(t, test.change(helper))
			require.NoError(t, helper.WaitUntilSynced(testCtx))
			assert.NoError(t, helper.Err())
		})
	}

	_, err = os.Lstat(filepath.Join(helper.Destination, "link"))
	assert.True(t, os.IsNotExist(err), "symlinks should not be mirrored")
}

func testIgnore(t *testing.T) {
	helper, err := util.NewTestHelper([]string{"*.swp", "node_modules"})
	require.NoError(t, err)
	defer helper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()
	require.NoError(t, helper.Start(ctx))

	require.NoError(t, sequence(
		createFile(randomFile(".main.go.swp")),
		createFile(randomFile("node_modules/pkg/index.js")),
		createFile(randomFile(".git/HEAD")),
		createFile(randomFile("main.go")),
	)(helper))
	require.NoError(t, helper.WaitUntilSynced(ctx))

	for _, ignored := range []string{".main.go.swp", "node_modules", ".git"} {
		_, err := os.Stat(filepath.Join(helper.Destination, ignored))
		assert.True(t, os.IsNotExist(err), "%s should be ignored", ignored)
	}
}
