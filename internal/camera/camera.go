package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fedragon/go-gallery/internal/fs"

	"github.com/disintegration/imaging"
)

type ResultKind string

const (
	ResultURI    ResultKind = "uri"
	ResultBase64 ResultKind = "base64"
)

type Source string

const (
	SourceCamera Source = "CAMERA"
	SourcePhotos Source = "PHOTOS"
)

var (
	// ErrCancelled is returned when the user backs out of a capture.
	ErrCancelled  = errors.New("capture cancelled by user")
	ErrUnreadable = errors.New("source is not a readable image")
)

type Options struct {
	ResultKind ResultKind
	Source     Source
	// Quality is the JPEG quality, 1-100.
	Quality int
}

// Photo is a transient reference to a captured image. It is not guaranteed to outlive the capture.
type Photo struct {
	Path    string
	WebPath string
	Format  string
}

// Camera is the capability used by a gallery session to obtain new images.
type Camera interface {
	Capture(ctx context.Context, opts Options) (Photo, error)
}

type sourceKey struct{}

// WithSource attaches the image to capture to ctx, bypassing any prompt.
func WithSource(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, sourceKey{}, path)
}

func sourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// FileCamera "captures" an existing image file, normalising it to a JPEG in a scratch directory.
type FileCamera struct {
	// Prompt asks for the image to capture. An empty answer cancels.
	Prompt  func(ctx context.Context) (string, error)
	TempDir string
}

func (c *FileCamera) Capture(ctx context.Context, opts Options) (Photo, error) {
	if opts.ResultKind != "" && opts.ResultKind != ResultURI {
		return Photo{}, fmt.Errorf("unsupported result kind %q", opts.ResultKind)
	}

	src := sourceFrom(ctx)
	if src == "" && c.Prompt != nil {
		answer, err := c.Prompt(ctx)
		if err != nil {
			return Photo{}, err
		}
		src = strings.TrimSpace(answer)
	}
	if src == "" {
		return Photo{}, ErrCancelled
	}

	if err := ctx.Err(); err != nil {
		return Photo{}, err
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return Photo{}, fmt.Errorf("%w: %v: %v", ErrUnreadable, src, err)
	}

	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = 100
	}

	out, err := os.CreateTemp(c.TempDir, "capture-*"+fs.JPEG)
	if err != nil {
		return Photo{}, err
	}

	err = imaging.Encode(out, img, imaging.JPEG, imaging.JPEGQuality(quality))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(out.Name())
		return Photo{}, fmt.Errorf("unable to encode capture: %w", err)
	}

	path, err := filepath.Abs(out.Name())
	if err != nil {
		return Photo{}, err
	}

	return Photo{
		Path:    path,
		WebPath: fs.ToURI(path),
		Format:  "jpeg",
	}, nil
}

// Release removes the scratch file of a capture that is no longer referenced.
func (c *FileCamera) Release(photo Photo) error {
	if photo.Path == "" {
		return nil
	}

	if err := os.Remove(photo.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
