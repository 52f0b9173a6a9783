package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles([]string{}, false, []string{"*.png"}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_ExplicitFiles(t *testing.T) {
	dir := t.TempDir()
	pngFile := filepath.Join(dir, "a.png")
	txtFile := filepath.Join(dir, "notes.txt")
	touch(t, pngFile)
	touch(t, txtFile)

	// Explicit files skip the extension filter; the include patterns still apply.
	files, err := discoverImageFiles([]string{pngFile, txtFile}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{pngFile, txtFile}, files)

	files, err = discoverImageFiles([]string{pngFile, txtFile}, false, []string{"*.png"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{pngFile}, files)
}

func TestDiscoverImageFiles_DirectoryFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	pngFile := filepath.Join(dir, "image.png")
	jpgFile := filepath.Join(dir, "photo.JPG")
	touch(t, pngFile)
	touch(t, jpgFile)
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "scan.pdf"))

	files, err := discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{pngFile, jpgFile}, files)
}

func TestDiscoverImageFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	rootPng := filepath.Join(dir, "root.png")
	subPng := filepath.Join(dir, "sub", "deeper", "sub.png")
	touch(t, rootPng)
	touch(t, subPng)

	files, err := discoverImageFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{rootPng, subPng}, files)

	files, err = discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{rootPng}, files)
}

func TestDiscoverImageFiles_IncludeExcludePatterns(t *testing.T) {
	dir := t.TempDir()
	test1 := filepath.Join(dir, "test1.png")
	test2 := filepath.Join(dir, "test2.gif")
	excluded := filepath.Join(dir, "exclude.png")
	touch(t, test1)
	touch(t, test2)
	touch(t, excluded)

	files, err := discoverImageFiles([]string{dir}, false, []string{"test*"}, []string{"*exclude*"})
	require.NoError(t, err)
	assert.Equal(t, []string{test1, test2}, files)

	files, err = discoverImageFiles([]string{dir}, false, nil, []string{"*.gif"})
	require.NoError(t, err)
	assert.Equal(t, []string{excluded, test1}, files)
}

func TestDiscoverImageFiles_NonExistent(t *testing.T) {
	files, err := discoverImageFiles([]string{"/nonexistent/directory"}, false, nil, nil)
	require.Error(t, err)
	assert.Nil(t, files)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestShouldIncludeFile(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		include []string
		exclude []string
		want    bool
	}{
		{"no patterns", "/a/b.png", nil, nil, true},
		{"include match", "/a/b.png", []string{"*.png"}, nil, true},
		{"include miss", "/a/b.jpg", []string{"*.png"}, nil, false},
		{"exclude wins", "/a/b.png", []string{"*.png"}, []string{"b.*"}, false},
		{"matches base name only", "/tmp/dir.png/x.jpg", []string{"*.png"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldIncludeFile(tt.path, tt.include, tt.exclude))
		})
	}
}
