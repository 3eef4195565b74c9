// Package writeback persists rendered gateway text.
package writeback

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// TempPrefix prefixes the temporary files written during an atomic write.
const TempPrefix = ".modgate-"

const defaultPerm os.FileMode = 0o644

// Options controls how a file is written.
type Options struct {
	// Atomic writes into a temp file in the same directory and renames it
	// over the target. Otherwise the target is truncated in place.
	Atomic bool
}

// WriteFile replaces the content of name in fs with data, keeping the
// permissions of an existing file.
func WriteFile(fs billy.Filesystem, name string, data []byte, opts Options) error {
	perm := defaultPerm
	info, err := fs.Stat(name)
	switch {
	case err == nil:
		perm = info.Mode().Perm()
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("stat %s: %w", name, err)
	}

	if !opts.Atomic {
		if err := util.WriteFile(fs, name, data, perm); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}
	return writeAtomic(fs, name, data, perm)
}

// IsTempFile reports whether base is a temp file left by an atomic write.
func IsTempFile(base string) bool {
	return len(base) > len(TempPrefix) && strings.HasPrefix(base, TempPrefix)
}

func writeAtomic(fs billy.Filesystem, name string, data []byte, perm os.FileMode) error {
	tmp, err := createTemp(fs, filepath.Dir(name), perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("close temp: %w", err)
	}

	// umask may have narrowed the mode
	if ch, ok := fs.(billy.Change); ok {
		_ = ch.Chmod(tmpName, perm) // best-effort permission sync
	}

	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName) // best-effort cleanup
		return fmt.Errorf("rename temp to %s: %w", name, err)
	}
	return nil
}

func createTemp(fs billy.Filesystem, dir string, perm os.FileMode) (billy.File, error) {
	for range 10000 {
		name := fs.Join(dir, TempPrefix+strconv.FormatUint(rand.Uint64(), 36))
		f, err := fs.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, perm)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("no free temp name in %s", dir)
}
