package scenario

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultPattern selects the test documents of a directory.
const DefaultPattern = "*.md"

// Find lists the files of dir matching pattern, a doublestar glob such as
// "**/*.md", in lexical order. An empty pattern means DefaultPattern.
func Find(dir, pattern string) ([]string, error) {
	pattern = cmp.Or(pattern, DefaultPattern)
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q", pattern)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", dir, err)
	}

	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
	}
	slices.Sort(files)

	return files, nil
}
