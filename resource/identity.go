package resource

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrTruncated means fewer (or more) bytes were hashed than the file held when it was opened.
var ErrTruncated = errors.New("file changed size while hashing")

// Identity is the content identity of a file.
type Identity struct {
	Hash string
	Size int64
}

// Identify hashes the whole file at path with SHA-1.
func Identify(ctx context.Context, path string) (Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return Identity{}, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Identity{}, err
	}
	if info.IsDir() {
		return identifyDir(ctx, path)
	}

	hash := sha1.New()
	n, err := io.Copy(hash, &ctxReader{ctx: ctx, r: file})
	if err != nil {
		return Identity{}, fmt.Errorf("hash %s: %w", path, err)
	}
	if n != info.Size() {
		return Identity{}, fmt.Errorf("hash %s: read %d of %d bytes: %w", path, n, info.Size(), ErrTruncated)
	}

	return Identity{Hash: hex.EncodeToString(hash.Sum(nil)), Size: n}, nil
}

// HashBytes returns the lowercase hex SHA-1 of b.
func HashBytes(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
