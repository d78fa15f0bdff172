// Package inventory lists audio files in dataset directories and reports
// per-directory file counts.
package inventory

import (
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// File is an audio file found directly inside a directory.
type File struct {
	// Name is the base name of the file.
	Name string
	// Size is the file size in bytes.
	Size int64
}

// Entry summarizes one directory of a scan.
type Entry struct {
	// Root is the scan root the directory was found under.
	Root string
	// Directory is the directory path.
	Directory string
	// Count is the number of matching audio files directly inside Directory.
	Count int
	// Bytes is the total size of those files.
	Bytes int64
}

// List returns the regular files directly inside dir whose names end in
// ext, sorted by name. Subdirectories and other extensions are ignored; an
// empty ext matches every regular file.
func List(dir, ext string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var files []File
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		files = append(files, File{Name: entry.Name(), Size: info.Size()})
	}
	return files, nil
}

// Names returns the set of every entry name inside dir, of any type.
func Names(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	names := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		names[entry.Name()] = struct{}{}
	}
	return names, nil
}

// Scan walks every root and returns one entry per directory, including
// directories without audio files. Entries are ordered by root, then path.
// With an empty ext every regular file is counted.
func Scan(roots []string, ext string) ([]Entry, error) {
	var result []Entry
	for _, root := range roots {
		var entries []Entry
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			files, err := List(path, ext)
			if err != nil {
				return err
			}
			entry := Entry{Root: root, Directory: path, Count: len(files)}
			for _, f := range files {
				entry.Bytes += f.Size
			}
			entries = append(entries, entry)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Directory < entries[j].Directory })
		result = append(result, entries...)
	}
	return result, nil
}

// LeafDirs returns every directory under roots that directly contains at
// least one file ending in ext.
func LeafDirs(roots []string, ext string) ([]string, error) {
	entries, err := Scan(roots, ext)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, e := range entries {
		if e.Count == 0 || seen[e.Directory] {
			continue
		}
		seen[e.Directory] = true
		dirs = append(dirs, e.Directory)
	}
	return dirs, nil
}

// WriteCSV writes entries as a "Directory,File Count" table.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Directory", "File Count"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Directory, strconv.Itoa(e.Count)}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
