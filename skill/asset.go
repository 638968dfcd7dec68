package skill

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// asset is a local directory that will be uploaded as one zip object whose key is derived from
// its content, so unchanged packages keep their location across deployments.
type asset struct {
	path string
	hash string
}

func (a asset) key() string {
	return a.hash + ".zip"
}

func newAsset(path string) (asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return asset{}, fmt.Errorf("%w: %v", ErrAssetPath, err)
	}
	if !info.IsDir() {
		return asset{}, fmt.Errorf("%w: %s is not a directory", ErrAssetPath, path)
	}

	hash, err := hashDirectory(path)
	if err != nil {
		return asset{}, fmt.Errorf("%w: %v", ErrAssetPath, err)
	}

	return asset{path: path, hash: hash}, nil
}

// hashDirectory hashes relative paths and file contents in lexical walk order.
func hashDirectory(root string) (string, error) {
	h := sha256.New()

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			fmt.Fprintf(h, "dir:%s\n", filepath.ToSlash(rel))
			return nil
		}

		fmt.Fprintf(h, "file:%s:%d\n", filepath.ToSlash(rel), info.Size())
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(h, f)
		return err
	})
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
