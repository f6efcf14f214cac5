package watch

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	logrusTest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidkik/lds/pkg/errors"
	"github.com/sidkik/lds/pkg/watch/watchtest"
)

func TestWalkSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("b"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "sub"), filepath.Join(root, "link")))

	notifier := watchtest.NewNotifier()
	table := NewTable(notifier, 100)
	_, err := table.Install(root, true)
	require.NoError(t, err)

	logger, _ := logrusTest.NewNullLogger()
	require.NoError(t, NewWalker(afero.NewOsFs(), table, logger).Walk(root))

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, []string{
		root,
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "sub"),
		filepath.Join(root, "sub", "b.txt"),
	}, notifier.Watched())
	_, ok := table.HandleOf(filepath.Join(root, "link"))
	assert.False(t, ok)
}

func TestWalkSkipsSpecialFiles(t *testing.T) {
	root := t.TempDir()
	fifo := filepath.Join(root, "fifo")
	if err := syscall.Mkfifo(fifo, 0644); err != nil {
		t.Skipf("mkfifo unsupported: %s", err)
	}

	table := NewTable(watchtest.NewNotifier(), 100)
	logger, logHook := logrusTest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	require.NoError(t, NewWalker(afero.NewOsFs(), table, logger).Walk(root))

	assert.Equal(t, 0, table.Len())
	require.Len(t, logHook.AllEntries(), 1)
	assert.Equal(t, logrus.DebugLevel, logHook.LastEntry().Level)
	assert.Equal(t, "Skipping special file", logHook.LastEntry().Message)
}

func newMemTree(t *testing.T, dirs, files []string) afero.Fs {
	fs := afero.NewMemMapFs()
	for _, dir := range dirs {
		require.NoError(t, fs.MkdirAll(dir, 0755))
	}
	for _, file := range files {
		require.NoError(t, afero.WriteFile(fs, file, []byte("contents"), 0644))
	}
	return fs
}

func TestWalkContinuesAfterInstallFailure(t *testing.T) {
	fs := newMemTree(t,
		[]string{"/src/a", "/src/a/nested", "/src/b", "/src/c"},
		[]string{"/src/a/nested/x", "/src/b/y", "/src/c/z"})

	notifier := watchtest.NewNotifier()
	notifier.Fail["/src/a"] = errors.New("permission denied")
	notifier.Fail["/src/b/y"] = errors.New("no such file or directory")
	table := NewTable(notifier, 100)

	logger, logHook := logrusTest.NewNullLogger()
	require.NoError(t, NewWalker(fs, table, logger).Walk("/src"))

	assert.Equal(t, []string{"/src/b", "/src/c", "/src/c/z"}, notifier.Watched())

	var warnings []string
	for _, entry := range logHook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warnings = append(warnings, entry.Message+" "+entry.Data["path"].(string))
		}
	}
	assert.Equal(t, []string{
		"Failed to watch directory /src/a",
		"Failed to watch file /src/b/y",
	}, warnings)
}

func TestWalkCapacityExceeded(t *testing.T) {
	fs := newMemTree(t, []string{"/src/a", "/src/b"}, []string{"/src/a/x", "/src/b/y"})
	table := NewTable(watchtest.NewNotifier(), 2)

	logger, _ := logrusTest.NewNullLogger()
	err := NewWalker(fs, table, logger).Walk("/src")
	assert.True(t, errors.IsCapacityExceeded(err))
	assert.Equal(t, 2, table.Len())
}

func TestWalkMissingDirectory(t *testing.T) {
	logger, _ := logrusTest.NewNullLogger()
	table := NewTable(watchtest.NewNotifier(), 10)
	err := NewWalker(afero.NewMemMapFs(), table, logger).Walk("/missing")
	assert.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "list directory:"))
}

func TestWalkExclude(t *testing.T) {
	fs := newMemTree(t, []string{"/src/.git/objects", "/src/app"},
		[]string{"/src/.git/HEAD", "/src/app/main.go", "/src/app/main.go.swp"})
	notifier := watchtest.NewNotifier()
	table := NewTable(notifier, 100)

	logger, _ := logrusTest.NewNullLogger()
	walker := NewWalker(fs, table, logger)
	walker.Exclude = func(path string) bool {
		return filepath.Base(path) == ".git" || strings.HasSuffix(path, ".swp")
	}
	require.NoError(t, walker.Walk("/src"))
	assert.Equal(t, []string{"/src/app", "/src/app/main.go"}, notifier.Watched())
}

func TestClassify(t *testing.T) {
	tests := []struct {
		mode os.FileMode
		exp  FileType
	}{
		{0644, RegularFile},
		{os.ModeDir | 0755, Directory},
		{os.ModeSymlink | 0777, Special},
		{os.ModeDevice | 0600, Special},
		{os.ModeDevice | os.ModeCharDevice | 0600, Special},
		{os.ModeNamedPipe | 0600, Special},
		{os.ModeSocket | 0600, Special},
		{os.ModeIrregular, Unknown},
	}

	for _, test := range tests {
		assert.Equal(t, test.exp, Classify(test.mode), test.mode.String())
	}
}
