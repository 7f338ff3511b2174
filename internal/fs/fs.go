package fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fedragon/go-gallery/internal/models"

	"github.com/mitchellh/go-homedir"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
	"lukechampine.com/blake3"
)

// Directory scopes a path to one of the areas managed by a LocalFilesystem.
type Directory string

const (
	None      Directory = ""
	Data      Directory = "DATA"
	Cache     Directory = "CACHE"
	Documents Directory = "DOCUMENTS"
)

const (
	JPG  = ".jpg"
	JPEG = ".jpeg"
	PNG  = ".png"
)

var (
	ImageTypes = []string{JPG, JPEG, PNG}

	ErrOutsideDirectory = errors.New("path escapes its directory")
)

type WriteResult struct {
	URI string
}

// LocalFilesystem stores files under a root directory, one sub-directory per Directory.
type LocalFilesystem struct {
	root   string
	logger *zap.Logger
}

func NewLocalFilesystem(root string, logger *zap.Logger) (*LocalFilesystem, error) {
	expanded, err := homedir.Expand(root)
	if err != nil {
		return nil, fmt.Errorf("unable to expand %v: %w", root, err)
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, err
	}

	l := &LocalFilesystem{root: abs, logger: logger}
	for _, d := range []Directory{Data, Cache, Documents} {
		if err := os.MkdirAll(l.Dir(d), 0o755); err != nil {
			return nil, fmt.Errorf("unable to create directory %v: %w", l.Dir(d), err)
		}
	}

	return l, nil
}

func (l *LocalFilesystem) Dir(d Directory) string {
	if d == None {
		return l.root
	}

	return filepath.Join(l.root, strings.ToLower(string(d)))
}

// Resolve maps a path or file:// URI to an absolute path inside dir.
func (l *LocalFilesystem) Resolve(path string, dir Directory) (string, error) {
	p, err := FromURI(path)
	if err != nil {
		return "", err
	}

	if dir == None {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return "", err
		}
		return filepath.Abs(expanded)
	}

	base := l.Dir(dir)
	target := filepath.Join(base, p)
	if filepath.IsAbs(p) {
		target = filepath.Clean(p)
	}

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%v: %w", path, ErrOutsideDirectory)
	}

	return target, nil
}

func (l *LocalFilesystem) ReadFile(ctx context.Context, path string, dir Directory) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := l.Resolve(path, dir)
	if err != nil {
		return nil, err
	}

	return os.ReadFile(target)
}

// WriteFile atomically replaces the file at path and returns its durable URI.
func (l *LocalFilesystem) WriteFile(ctx context.Context, path string, data []byte, dir Directory) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}

	target, err := l.Resolve(path, dir)
	if err != nil {
		return WriteResult{}, err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return WriteResult{}, err
	}

	l.logger.Debug("Atomically writing file", zap.String("path", target), zap.Int("size", len(data)))
	if err := atomic.WriteFile(target, bytes.NewReader(data)); err != nil {
		return WriteResult{}, fmt.Errorf("unable to write %v: %w", target, err)
	}

	return WriteResult{URI: ToURI(target)}, nil
}

func ToURI(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func FromURI(path string) (string, error) {
	if !strings.HasPrefix(path, "file://") {
		return path, nil
	}

	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid file URI %v: %w", path, err)
	}

	return filepath.FromSlash(u.Path), nil
}

func Hash(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// Walk streams every file under root whose extension is one of fileTypes.
func Walk(root string, fileTypes []string) <-chan models.Media {
	media := make(chan models.Media)

	go func() {
		defer close(media)

		typesMap := make(map[string]bool)
		for _, t := range fileTypes {
			typesMap[strings.ToLower(t)] = true
		}

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && typesMap[strings.ToLower(filepath.Ext(d.Name()))] {
				media <- models.Media{Path: path}
			}

			return nil
		})

		if err != nil {
			media <- models.Media{Err: err}
		}
	}()

	return media
}
