package loader

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/wippyai/hotswap/errors"
)

// LoadedMarker separates the source stem from the unique suffix of a copy.
const LoadedMarker = "_loaded_"

// CopyPath returns a fresh unique path beside source.
// ulid.Make is monotonic within a process, so two calls in the same
// millisecond still differ.
func CopyPath(source string) string {
	dir, base := filepath.Split(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+LoadedMarker+ulid.Make().String()+ext)
}

// IsLoadedCopy reports whether name looks like a path produced by CopyPath.
func IsLoadedCopy(name string) bool {
	return strings.Contains(filepath.Base(name), LoadedMarker)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.New(errors.PhaseLoad, errors.KindNotFound).
				Module(src).
				Detail("module file does not exist").
				Cause(err).
				Build()
		}
		return errors.IO(errors.PhaseLoad, "open module source", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.IO(errors.PhaseLoad, "stat module source", err)
	}
	if info.IsDir() {
		return errors.InvalidInput(errors.PhaseLoad, src+" is a directory")
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return errors.IO(errors.PhaseLoad, "create module copy", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.IO(errors.PhaseLoad, "close module copy", cerr)
		}
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return errors.IO(errors.PhaseLoad, "copy module", err)
	}
	return nil
}
