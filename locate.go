package modrun

import (
	"context"
	"os"
	"path/filepath"
	"regexp"

	"golang.org/x/sync/errgroup"
)

// DefaultPattern matches .jar and .bar files.
const DefaultPattern = `.*\.[bj]ar$`

// Root is one scan root taken from the command line.
type Root struct {
	Dir       string
	Recursive bool
	// Pattern is matched against the whole absolute path. Empty means DefaultPattern.
	Pattern string
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, PatternError{Pattern: pattern, Err: err}
	}
	return re, nil
}

// Locate collects the files under root whose absolute path matches the root's pattern.
//
// A root that does not exist, cannot be read or is not a directory yields no files and no error.
// Entries are visited in the order os.ReadDir returns them.
func Locate(root Root) ([]CandidateFile, error) {
	re, err := compilePattern(root.Pattern)
	if err != nil {
		return nil, err
	}
	if root.Dir == "" {
		return nil, nil
	}
	dir, err := filepath.Abs(root.Dir)
	if err != nil {
		return nil, nil
	}
	s := scanner{
		match:     re,
		recursive: root.Recursive,
		visited:   make(map[string]struct{}),
	}
	s.scan(dir)
	return s.files, nil
}

type scanner struct {
	match     *regexp.Regexp
	recursive bool
	visited   map[string]struct{}
	files     []CandidateFile
}

func (s *scanner) scan(dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return
	}
	// Symlinked directories can reach the same place twice.
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if _, seen := s.visited[real]; seen {
			return
		}
		s.visited[real] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.IsDir() {
			if s.recursive {
				s.scan(path)
			}
			continue
		}
		if s.match.MatchString(path) {
			s.files = append(s.files, CandidateFile{Path: path, ModTime: info.ModTime()})
		}
	}
}

// LocateAll scans every root concurrently and concatenates the results in root order.
func LocateAll(ctx context.Context, roots []Root) ([]CandidateFile, error) {
	results := make([][]CandidateFile, len(roots))
	g, ctx := errgroup.WithContext(ctx)
	for i, root := range roots {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			files, err := Locate(root)
			if err != nil {
				return err
			}
			results[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []CandidateFile
	for _, files := range results {
		all = append(all, files...)
	}
	return all, nil
}

// Dedupe keeps one file per base name.
// A later duplicate replaces the earlier file but keeps its position in the result.
func Dedupe(files []CandidateFile) []CandidateFile {
	index := make(map[string]int, len(files))
	out := make([]CandidateFile, 0, len(files))
	for _, f := range files {
		name := f.Name()
		if i, ok := index[name]; ok {
			out[i] = f
			continue
		}
		index[name] = len(out)
		out = append(out, f)
	}
	return out
}
