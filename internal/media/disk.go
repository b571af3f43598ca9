package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DiskStore keeps blobs as flat files in a single directory and serves them
// under a URL prefix. Names are generated, never taken from the client, so
// a URL maps back to exactly one file under the directory.
type DiskStore struct {
	dir     string
	baseURL string
	log     *zap.Logger
}

// NewDiskStore creates the directory if needed. baseURL is the public path
// prefix blobs are served under, e.g. "/media".
func NewDiskStore(dir, baseURL string, log *zap.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		log:     log,
	}, nil
}

// Dir returns the directory blobs live in, for wiring a file server.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	name := uuid.NewString() + safeExt(filename)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close blob: %w", err)
	}

	url := s.baseURL + "/" + name
	s.log.Debug("blob saved", zap.String("url", url))
	return url, nil
}

func (s *DiskStore) Remove(ctx context.Context, url string) error {
	name, ok := s.blobName(url)
	if !ok {
		return ErrUnmanaged
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *DiskStore) Owns(url string) bool {
	_, ok := s.blobName(url)
	return ok
}

// blobName maps a URL back to a file name under dir. Anything that is not a
// bare name directly under the base path is rejected.
func (s *DiskStore) blobName(url string) (string, bool) {
	name, found := strings.CutPrefix(url, s.baseURL+"/")
	if !found || name == "" {
		return "", false
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return "", false
	}
	return name, true
}

func safeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 {
		return ""
	}
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
