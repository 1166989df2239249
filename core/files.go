package core

import (
	"io/fs"
	"path/filepath"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/spf13/afero"
)

// metadataDirs hold VCS bookkeeping and are never part of a file list.
var metadataDirs = map[string]struct{}{".git": {}, ".hg": {}, ".svn": {}}

// listFiles returns the paths of every regular file under root in lexical order,
// skipping VCS metadata directories and excluded paths.
func listFiles(afs afero.Fs, root string, exclude *contract.PathMatcher) ([]string, error) {
	var files []string
	err := afero.Walk(afs, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if _, skip := metadataDirs[info.Name()]; skip || exclude.Match(rel) || exclude.Match(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Mode().IsRegular() && !exclude.Match(rel) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
