package main

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

//go:embed init_data/config.example.yaml
var configExample []byte

//go:embed init_data/pipeline.example.yaml
var pipelineExample []byte

// runInit initializes a pipelined working directory: the data
// directory the engine writes files/history into, plus example config
// and pipeline files an operator edits before their first "serve".
// Existing files are never overwritten.
func runInit(w io.Writer, dir string) error {
	fmt.Fprintf(w, "Initializing pipelined workspace in %s\n", dir)

	for _, sub := range []string{"data", "data/files"} {
		path := filepath.Join(dir, sub)
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	if err := writeIfMissing(w, configPath, configExample, 0o600); err != nil {
		return err
	}

	pipelinePath := filepath.Join(dir, "pipeline.yaml")
	if err := writeIfMissing(w, pipelinePath, pipelineExample, 0o644); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Edit config.yaml, then run: pipelined serve -config config.yaml")
	fmt.Fprintln(w, "Once serving, PUT the pipeline as JSON to /v1/config, then POST /v1/start")
	return nil
}

// writeIfMissing creates path with content and mode, refusing to
// clobber a file that already exists there. Reports which outcome
// occurred on w so runInit's output tells the operator what changed.
func writeIfMissing(w io.Writer, path string, content []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			fmt.Fprintf(w, "  %s exists, skipping\n", path)
			return nil
		}
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "  ✓ %s\n", path)
	return nil
}
