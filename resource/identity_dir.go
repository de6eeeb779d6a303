package resource

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// identifyDir hashes a directory tree. Entries are visited in lexical order and
// each file contributes its slash separated relative path, its size and its bytes.
func identifyDir(ctx context.Context, root string) (Identity, error) {
	hash := sha1.New()
	var total int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		io.WriteString(hash, filepath.ToSlash(rel))
		hash.Write([]byte{0})
		io.WriteString(hash, strconv.FormatInt(info.Size(), 10))
		hash.Write([]byte{0})

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := io.Copy(hash, &ctxReader{ctx: ctx, r: f})
		if err != nil {
			return err
		}
		if n != info.Size() {
			return fmt.Errorf("%s: read %d of %d bytes: %w", rel, n, info.Size(), ErrTruncated)
		}
		total += n
		return nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("hash directory %s: %w", root, err)
	}

	return Identity{Hash: hex.EncodeToString(hash.Sum(nil)), Size: total}, nil
}
