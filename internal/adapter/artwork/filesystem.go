package artwork

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/port"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

type Options struct {
	Dir        string
	URLPrefix  string
	MaxBytes   int64
	Extensions []string
}

// FileStore keeps uploaded artwork on the local filesystem. The returned
// reference is the public URL path the HTTP router serves the file under.
type FileStore struct {
	dir        string
	urlPrefix  string
	maxBytes   int64
	extensions map[string]struct{}
}

func NewFileStore(opts Options) (*FileStore, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artwork dir: %w", err)
	}

	exts := make(map[string]struct{}, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}

	return &FileStore{
		dir:        opts.Dir,
		urlPrefix:  "/" + strings.Trim(opts.URLPrefix, "/"),
		maxBytes:   opts.MaxBytes,
		extensions: exts,
	}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) URLPrefix() string {
	return s.urlPrefix
}

// Save writes r to a uniquely named file. Only the extension is checked;
// the content is stored as-is.
func (s *FileStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	if _, ok := s.extensions[ext]; !ok {
		return "", domain.InvalidField("file", fmt.Sprintf("extension %q is not allowed", ext))
	}

	stem := unsafeChars.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_")
	stem = strings.Trim(stem, "._")
	if stem == "" {
		stem = "artwork"
	}
	name := uuid.NewString()[:8] + "_" + stem + ext

	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, name)
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create artwork file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return "", fmt.Errorf("write artwork file: %w", err)
	}
	if s.maxBytes > 0 && written > s.maxBytes {
		os.Remove(target)
		return "", domain.InvalidField("file", fmt.Sprintf("must not exceed %d bytes", s.maxBytes))
	}

	return path.Join(s.urlPrefix, name), nil
}

var _ port.ArtworkStorage = (*FileStore)(nil)
