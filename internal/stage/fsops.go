package stage

import (
	"fmt"
	"io"
	"os"
)

// copyFile copies src to dst, preserving the source's permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return &FilesystemError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return &FilesystemError{Op: "stat", Path: src, Err: err}
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return &FilesystemError{Op: "create", Path: dst, Err: err}
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return &FilesystemError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		return &FilesystemError{Op: "close", Path: dst, Err: err}
	}
	return nil
}

// replaceFile copies src over dst with unlink-then-copy semantics
// (--remove-destination): if dst is a symlink, the link is removed instead of
// writing through it into the shared build tree.
func replaceFile(src, dst string) error {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return &FilesystemError{Op: "remove", Path: dst, Err: err}
	}
	return copyFile(src, dst)
}

// backupThenCopy copies src to dst, first renaming an existing dst to
// dst.bak. The backup is a historical safety net, not relied upon for
// correctness.
func backupThenCopy(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Rename(dst, dst+".bak"); err != nil {
			return &FilesystemError{Op: "backup", Path: dst, Err: err}
		}
	}
	return copyFile(src, dst)
}

// nextFreeSuffix returns the first path of the form <base><n> that does not
// exist yet.
func nextFreeSuffix(base string) string {
	for n := 0; ; n++ {
		candidate := fmt.Sprintf("%s%d", base, n)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}
