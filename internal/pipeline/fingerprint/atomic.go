package fingerprint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// AtomicWrite writes data to a temp file alongside target ("."+name+".tmp"),
// then renames it over target. A reader observing target's final path sees
// either the previous content or the complete new content, never a partial
// write. The temp file is removed if anything fails before the rename.
func AtomicWrite(data []byte, target string) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomic write %s: %w", target, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(target)+".tmp")

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("atomic write %s: %w", target, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomic write %s: %w", target, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomic write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomic write %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomic write %s: %w", target, err)
	}
	return nil
}

// AtomicCopy copies src to dst using the same write-temp-then-rename
// discipline as AtomicWrite.
func AtomicCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	defer in.Close()

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(dst)+".tmp")

	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("atomic copy %s -> %s: %w", src, dst, err)
	}
	return nil
}
