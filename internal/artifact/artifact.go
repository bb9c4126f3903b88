// Package artifact provides the orchestrator's write-temp-then-rename commit
// primitive and the stable content-hash used for resume safety. It is
// factored out of the orchestrator so the commit protocol and the hash
// function each get their own focused tests.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// WriteAtomic writes payload to <dir>/<name>, fsyncing before the final
// rename so a crash between write and rename never leaves a half-written
// file at the final path. The temp file carries a random nonce so
// concurrent writers (or a retried stage) never collide.
func WriteAtomic(dir, name string, payload []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact: mkdir %s: %w", dir, err)
	}

	final := filepath.Join(dir, name)
	tmp := filepath.Join(dir, name+".tmp."+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("artifact: create temp %s: %w", tmp, err)
	}

	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("artifact: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("artifact: fsync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("artifact: close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("artifact: rename %s -> %s: %w", tmp, final, err)
	}
	return final, nil
}

// GCOrphanedTemp removes any "<name>.tmp.<nonce>" file left behind by a
// crash between write and rename, for every artifact name in dir. It is
// run once at the start of a resumed run before any stage executes.
func GCOrphanedTemp(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("artifact: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), ".tmp.") {
			_ = os.Remove(filepath.Join(dir, e.Name()))
		}
	}
	return nil
}

// HashBytes folds payload through SHA-256 and returns it hex-encoded. Used
// for both input_hash (the content-only hash of the raw table, ignoring
// trailing whitespace/newlines via NormalizeForHash below) and for
// hashing any other artifact that needs a stable fingerprint.
func HashBytes(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through SHA-256 without materializing it, for large
// input tables.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("artifact: hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// NormalizeForHash strips trailing whitespace from every line and trailing
// blank lines, so a file that differs only in trailing newline/whitespace
// hashes identically: the input hash guards content, not incidental
// editor noise.
func NormalizeForHash(payload []byte) []byte {
	lines := strings.Split(string(payload), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return []byte(strings.Join(lines, "\n"))
}
