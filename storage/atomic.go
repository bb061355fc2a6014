package storage

import (
	"os"
	"path/filepath"
	"time"
)

// AtomicWriteFile writes data to path via a sibling ".tmp" file followed by
// os.Rename, so readers never observe a partially written file. Mirrors
// flowfish.node.Node._dump_data / _dump_conf's temp-file-then-rename
// pattern.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// CopyFile copies src to dst, skipping the copy when dst already exists
// with the same size and a modification time no older than src's.
// flowfish.utils.copy_file only compares size (a documented weak check,
// spec.md §9); this strengthens it with an mtime comparison, a deliberate behavior change invited by the
// spec's "a conforming implementation may strengthen this" note -- see
// DESIGN.md. The copy itself tries a hard link first (same directory
// layout, zero data duplication on disk) and falls back to a
// temp-file-then-rename copy across filesystems.
func CopyFile(src, dst string) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return err
	}

	modified := true
	if dstInfo, err := os.Stat(dst); err == nil {
		modified = dstInfo.Size() != srcInfo.Size() || dstInfo.ModTime().Before(srcInfo.ModTime())
	}
	if !modified {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if err := os.Link(src, dst); err == nil {
		now := time.Now()
		return os.Chtimes(dst, now, now)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return AtomicWriteFile(dst, data, 0o644)
}
