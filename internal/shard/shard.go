// Package shard manages per-worker output directories (spec.md §4.14): each
// worker writes exclusively to its own "shard-{id}" directory to avoid
// cross-worker file contention, with an optional post-run merge step.
package shard

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir is one worker's output directory.
type Dir struct {
	root string
	id   int
	path string
}

// Open creates (if needed) and returns the shard directory for workerID
// under outputDir, grounded on the teacher's NewOrchestrator temp-dir setup
// (os.MkdirAll(config.TempDir, ...) in orchestrator.go) generalized from one
// shared temp dir to one directory per worker.
func Open(outputDir string, workerID int) (*Dir, error) {
	path := filepath.Join(outputDir, fmt.Sprintf("shard-%d", workerID))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("shard: creating %s: %w", path, err)
	}
	return &Dir{root: outputDir, id: workerID, path: path}, nil
}

// Path returns the absolute path of this shard directory.
func (d *Dir) Path() string { return d.path }

// OutputPath returns "{shardDir}/{stem}.{ext}" for a document's extracted
// content file.
func (d *Dir) OutputPath(inputPath, ext string) string {
	stem := stemOf(inputPath)
	return filepath.Join(d.path, stem+"."+ext)
}

// StagesPath returns "{output}.stages.{ext}" next to the extracted content
// file, per spec.md §4.14.
func (d *Dir) StagesPath(outputPath, ext string) string {
	return outputPath + ".stages." + ext
}

func stemOf(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}

// Merge moves every file from every worker's shard directory into
// "{outputDir}/merged/", renaming collisions with a "shard{id}-" prefix
// (spec.md §4.14).
func Merge(outputDir string, workerCount int) error {
	mergedDir := filepath.Join(outputDir, "merged")
	if err := os.MkdirAll(mergedDir, 0o755); err != nil {
		return fmt.Errorf("shard: creating merged dir: %w", err)
	}

	seen := make(map[string]struct{})
	for workerID := 0; workerID < workerCount; workerID++ {
		shardDir := filepath.Join(outputDir, fmt.Sprintf("shard-%d", workerID))
		entries, err := os.ReadDir(shardDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("shard: reading %s: %w", shardDir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			dest := filepath.Join(mergedDir, name)
			if _, collision := seen[name]; collision {
				dest = filepath.Join(mergedDir, fmt.Sprintf("shard%d-%s", workerID, name))
			}
			seen[name] = struct{}{}

			if err := moveFile(filepath.Join(shardDir, name), dest); err != nil {
				return err
			}
		}
	}
	return nil
}

// moveFile renames, falling back to copy+remove across filesystem
// boundaries (os.Rename fails with EXDEV when the shard and merged
// directories are on different mounts).
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("shard: opening %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("shard: creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("shard: copying %s to %s: %w", src, dst, err)
	}
	return os.Remove(src)
}
