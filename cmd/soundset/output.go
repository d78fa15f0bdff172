package main

import (
	"fmt"
	"io"
	"os"
)

// openOutput returns stdout for "-" or an empty path, and a created file
// otherwise. The returned func closes the file.
func openOutput(stdout io.Writer, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
