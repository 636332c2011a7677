package source

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SessionExtensions are the file extensions treated as session logs when a
// directory is given as input. Each may carry a compression suffix.
var SessionExtensions = []string{".jsonl", ".ndjson"}

// ScanOptions configures directory expansion.
type ScanOptions struct {
	// Recursive descends into subdirectories. Hidden directories are always skipped.
	Recursive bool
	// MaxDepth limits recursion depth (0 = unlimited, 1 = current dir only)
	MaxDepth int
}

// ScanResult contains the results of expanding input arguments.
type ScanResult struct {
	// Files lists inputs in the order they should be read
	Files []string
	// Errors contains non-fatal errors met while walking directories
	Errors []error
}

// ExpandArgs replaces every directory in args with the session logs it
// contains, sorted by path. Other arguments, including Stdin, are kept in
// place. A directory holding no session logs contributes nothing.
func ExpandArgs(args []string, opts ScanOptions) (*ScanResult, error) {
	result := &ScanResult{
		Files:  make([]string, 0, len(args)),
		Errors: make([]error, 0),
	}

	for _, arg := range args {
		if arg == Stdin {
			result.Files = append(result.Files, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			// Open reports missing files with the right context.
			result.Files = append(result.Files, arg)
			continue
		}

		files, errs, err := scanDirectory(arg, opts)
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, files...)
		result.Errors = append(result.Errors, errs...)
	}
	return result, nil
}

// IsSessionFile reports whether name looks like a session log, compressed or not.
func IsSessionFile(name string) bool {
	lower := strings.ToLower(name)
	if Detect(lower) != None {
		lower = strings.TrimSuffix(lower, filepath.Ext(lower))
	}
	ext := filepath.Ext(lower)
	for _, e := range SessionExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

func scanDirectory(dir string, opts ScanOptions) ([]string, []error, error) {
	var files []string
	var errs []error

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, fmt.Errorf("error accessing %s: %w", path, err))
			return nil // Continue walking
		}

		// Skip the root directory itself
		if path == dir {
			return nil
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") || !opts.Recursive {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 {
				relPath, _ := filepath.Rel(dir, path)
				depth := strings.Count(relPath, string(filepath.Separator)) + 1
				if depth >= opts.MaxDepth {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if d.Type().IsRegular() && IsSessionFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	// Sort files for consistent output
	sort.Strings(files)
	return files, errs, nil
}
