package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func newFilesystem(t *testing.T) *LocalFilesystem {
	t.Helper()

	l, err := NewLocalFilesystem(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	return l
}

func TestWriteThenRead(t *testing.T) {
	l := newFilesystem(t)
	ctx := context.Background()

	res, err := l.WriteFile(ctx, "1700000000000.jpeg", []byte("doge"), Data)
	if err != nil {
		t.Fatal(err)
	}

	expected := ToURI(filepath.Join(l.Dir(Data), "1700000000000.jpeg"))
	if res.URI != expected {
		t.Errorf("Expected %v but got %v instead", expected, res.URI)
	}

	cases := []struct {
		name string
		path string
		dir  Directory
	}{
		{
			name: "reading by name from the same directory returns the written bytes",
			path: "1700000000000.jpeg",
			dir:  Data,
		},
		{
			name: "reading by durable URI returns the written bytes",
			path: res.URI,
			dir:  Data,
		},
		{
			name: "reading by URI without a directory returns the written bytes",
			path: res.URI,
			dir:  None,
		},
	}

	for _, c := range cases {
		data, err := l.ReadFile(ctx, c.path, c.dir)
		if err != nil {
			t.Errorf("%v\n\tunexpected error: %v", c.name, err)
			continue
		}

		if string(data) != "doge" {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, "doge", string(data))
		}
	}
}

func TestResolveRejectsEscapes(t *testing.T) {
	l := newFilesystem(t)

	cases := []struct {
		name string
		path string
	}{
		{name: "relative parent path", path: "../secret.jpeg"},
		{name: "absolute path outside the directory", path: "/etc/passwd"},
		{name: "the directory itself", path: "."},
	}

	for _, c := range cases {
		if _, err := l.Resolve(c.path, Data); !errors.Is(err, ErrOutsideDirectory) {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, ErrOutsideDirectory, err)
		}
	}
}

func TestReadMissingFile(t *testing.T) {
	l := newFilesystem(t)

	if _, err := l.ReadFile(context.Background(), "nope.jpeg", Data); !os.IsNotExist(err) {
		t.Errorf("Expected a not-exist error but got %v instead", err)
	}
}

func TestReadHonoursCancelledContext(t *testing.T) {
	l := newFilesystem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.WriteFile(ctx, "a.jpeg", []byte("a"), Data); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected %v but got %v instead", context.Canceled, err)
	}
}

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "with space", "a.jpeg")

	uri := ToURI(path)
	if !strings.HasPrefix(uri, "file:///") {
		t.Errorf("Expected a file URI but got %v instead", uri)
	}

	back, err := FromURI(uri)
	if err != nil {
		t.Fatal(err)
	}
	if back != path {
		t.Errorf("Expected %v but got %v instead", path, back)
	}
}

func TestHash(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}

	doge := write("doge.jpg", "such wow")
	sameDoge := write("same-doge.jpg", "such wow")
	grumpy := write("grumpy-cat.jpg", "no")

	cases := []struct {
		name     string
		pathA    string
		pathB    string
		expected bool
	}{
		{
			name:     "hashing the same file twice returns the same value",
			pathA:    doge,
			pathB:    doge,
			expected: true,
		},
		{
			name:     "hashing two files with same content but different name returns the same value",
			pathA:    doge,
			pathB:    sameDoge,
			expected: true,
		},
		{
			name:     "hashing two different files returns different values",
			pathA:    doge,
			pathB:    grumpy,
			expected: false,
		},
	}

	for _, c := range cases {
		a, err := Hash(c.pathA)
		if err != nil {
			t.Error(err)
		}
		b, err := Hash(c.pathB)
		if err != nil {
			t.Error(err)
		}

		equal := reflect.DeepEqual(a, b)
		if equal != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, equal)
		}
	}
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"a.jpeg", "b.JPG", "notes.txt", "nested/c.png"} {
		full := filepath.Join(root, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(p), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name      string
		root      string
		fileTypes []string
		expected  int
	}{
		{
			name:      "walk returns all images in a directory and all its subdirectories",
			root:      root,
			fileTypes: ImageTypes,
			expected:  3,
		},
		{
			name:      "walk only returns the requested file types",
			root:      root,
			fileTypes: []string{PNG},
			expected:  1,
		},
		{
			name:      "walk on a nested directory only returns its images",
			root:      filepath.Join(root, "nested"),
			fileTypes: ImageTypes,
			expected:  1,
		},
	}

	for _, c := range cases {
		var count int
		for m := range Walk(c.root, c.fileTypes) {
			if m.Err != nil {
				t.Error(m.Err)
				continue
			}

			count++
		}

		if count != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, count)
		}
	}
}
