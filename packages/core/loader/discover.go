package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var suiteExtensions = []string{".suite.yaml", ".suite.yml"}

// IsSuiteFile reports whether path names a suite document.
func IsSuiteFile(path string) bool {
	for _, ext := range suiteExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Discover expands files and directories into suite files. Directories are
// walked recursively; explicitly named files are kept whatever their
// extension.
func Discover(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() && path != arg && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if !d.IsDir() && IsSuiteFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
