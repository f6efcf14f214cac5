package sync

import (
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sidkik/lds/ci/util"
	"github.com/sidkik/lds/pkg/errors"
)

type file struct {
	path     string
	contents string
	mode     os.FileMode
}

func (f file) WithPath(path string) file {
	f.path = path
	return f
}

func (f file) WithContents(contents string) file {
	f.contents = contents
	return f
}

func (f file) WithMode(mode os.FileMode) file {
	f.mode = mode
	return f
}

func randomFile(path string) file {
	return file{
		path:     path,
		contents: strconv.Itoa(rand.Int()),
		mode:     os.FileMode(0640 | rand.Intn(8)),
	}
}

type fsOp func(*util.TestHelper) error

func source(helper *util.TestHelper, path string) string {
	return filepath.Join(helper.Source, path)
}

func createFile(toCreate file) fsOp {
	return func(helper *util.TestHelper) error {
		path := source(helper, toCreate.path)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.WithContext(err, "make parent")
		}

		if err := ioutil.WriteFile(path, []byte(toCreate.contents), 0644); err != nil {
			return errors.WithContext(err, "write")
		}

		if err := os.Chmod(path, toCreate.mode); err != nil {
			return errors.WithContext(err, "chmod")
		}
		return nil
	}
}

func appendFile(path, contents string) fsOp {
	return func(helper *util.TestHelper) error {
		f, err := os.OpenFile(source(helper, path), os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			return errors.WithContext(err, "open")
		}
		defer f.Close()

		if _, err := f.WriteString(contents); err != nil {
			return errors.WithContext(err, "write")
		}
		return nil
	}
}

func truncateFile(path string, size int64) fsOp {
	return func(helper *util.TestHelper) error {
		return os.Truncate(source(helper, path), size)
	}
}

func makeDir(path string) fsOp {
	return func(helper *util.TestHelper) error {
		return os.MkdirAll(source(helper, path), 0755)
	}
}

func removePath(path string) fsOp {
	return func(helper *util.TestHelper) error {
		return os.RemoveAll(source(helper, path))
	}
}

func renamePath(from, to string) fsOp {
	return func(helper *util.TestHelper) error {
		return os.Rename(source(helper, from), source(helper, to))
	}
}

func symlink(target, path string) fsOp {
	return func(helper *util.TestHelper) error {
		return os.Symlink(target, source(helper, path))
	}
}

func sequence(ops ...fsOp) fsOp {
	return func(helper *util.TestHelper) error {
		for _, op := range ops {
			if err := op(helper); err != nil {
				return err
			}
		}
		return nil
	}
}
