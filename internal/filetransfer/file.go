package filetransfer

import (
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"

	"github.com/rudransh-shrivastava/pitshare/internal/protocol"
	"github.com/rudransh-shrivastava/pitshare/internal/session"
)

func NewHash(algo string) (hash.Hash, error) {
	switch algo {
	case protocol.HashAlgoSHA1:
		return sha1.New(), nil
	case protocol.HashAlgoSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}

func HashFile(r io.Reader, algo string) (string, error) {
	h, err := NewHash(algo)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func CalculateTotalChunks(fileSize, chunkSize int64) int {
	if chunkSize <= 0 {
		return 0
	}
	return int((fileSize + chunkSize - 1) / chunkSize)
}

// Open prepares a local file for sending. The caller closes the returned file.
func Open(path string) (*session.File, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}

	return &session.File{
		Name:         filepath.Base(path),
		Size:         info.Size(),
		LastModified: info.ModTime(),
		Body:         f,
	}, f, nil
}

// BuildDownloadPath places name inside dir, dropping any directory part
// the peer may have put in it.
func BuildDownloadPath(dir, name string) string {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "download"
	}
	return filepath.Join(dir, base)
}
