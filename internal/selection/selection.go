package selection

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"

	"cdbs/internal/services"
)

// File is one selected local file.
type File struct {
	Path string
	Name string
	Size int64
	MIME string
}

// Options controls how arguments are expanded.
type Options struct {
	Recursive bool
	MaxFiles  int
	Accept    string
}

// Select resolves paths into upload candidates in argument order.
// Files named explicitly must satisfy Accept; files found while walking a
// directory that do not are skipped.
func Select(paths []string, opts Options) ([]File, error) {
	if len(paths) == 0 {
		return nil, invalid("no paths given")
	}

	var (
		files []File
		seen  = map[string]string{}
	)
	add := func(file File) error {
		key := norm.NFC.String(file.Name)
		if prev, ok := seen[key]; ok {
			if prev == file.Path {
				return nil
			}
			return invalid(fmt.Sprintf("%s and %s share the file name %q", prev, file.Path, file.Name))
		}
		seen[key] = file.Path
		files = append(files, file)
		if opts.MaxFiles > 0 && len(files) > opts.MaxFiles {
			return invalid(fmt.Sprintf("more than %d files selected", opts.MaxFiles))
		}
		return nil
	}

	for _, raw := range paths {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		absPath, err := filepath.Abs(trimmed)
		if err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, invalid(fmt.Sprintf("file does not exist: %s", absPath))
			}
			return nil, fmt.Errorf("inspect %s: %w", absPath, err)
		}

		if !info.IsDir() {
			file, err := describe(absPath, info)
			if err != nil {
				return nil, err
			}
			if !Accepts(opts.Accept, file.MIME) {
				return nil, invalid(fmt.Sprintf("%s is %s, not %s", absPath, file.MIME, opts.Accept))
			}
			if err := add(file); err != nil {
				return nil, err
			}
			continue
		}

		if !opts.Recursive {
			return nil, invalid(fmt.Sprintf("%s is a directory (use --recursive)", absPath))
		}
		found, err := walk(absPath, opts.Accept)
		if err != nil {
			return nil, err
		}
		for _, file := range found {
			if err := add(file); err != nil {
				return nil, err
			}
		}
	}

	if len(files) == 0 {
		return nil, invalid("no files selected")
	}
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []File) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// Accepts reports whether a detected MIME type satisfies pattern. Patterns are
// "type/subtype" or "type/*"; an empty pattern accepts anything.
func Accepts(pattern, detected string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" || pattern == "*/*" {
		return true
	}
	detected = strings.ToLower(detected)
	if base, _, ok := strings.Cut(detected, ";"); ok {
		detected = strings.TrimSpace(base)
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return strings.HasPrefix(detected, prefix+"/")
	}
	return detected == pattern
}

func walk(root, accept string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		file, err := describe(path, info)
		if err != nil {
			return err
		}
		if Accepts(accept, file.MIME) {
			files = append(files, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func describe(path string, info fs.FileInfo) (File, error) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect type of %s: %w", path, err)
	}
	return File{
		Path: path,
		Name: info.Name(),
		Size: info.Size(),
		MIME: mt.String(),
	}, nil
}

func invalid(message string) error {
	return services.Wrap(services.ErrValidation, "selection", "select files", message, nil)
}
