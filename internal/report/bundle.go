package report

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WriteSessionBundle zips a learn session's report and snapshots into one
// archive for hand-off (a session directory can hold thousands of JPEGs).
// Entries are stored with forward-slash names relative to the session dir.
func WriteSessionBundle(outputPath, reportPath, snapshotsDir string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create bundle %s: %w", outputPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	if reportPath != "" {
		if err := addBundleFile(zw, reportPath, filepath.Base(reportPath)); err != nil {
			zw.Close()
			return err
		}
	}

	if snapshotsDir != "" {
		var files []string
		err := filepath.WalkDir(snapshotsDir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			zw.Close()
			return fmt.Errorf("walk snapshots dir: %w", err)
		}
		sort.Strings(files)
		for _, path := range files {
			rel, err := filepath.Rel(snapshotsDir, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			name := "snapshots/" + strings.ReplaceAll(rel, string(os.PathSeparator), "/")
			if err := addBundleFile(zw, path, name); err != nil {
				zw.Close()
				return err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize bundle: %w", err)
	}
	return nil
}

func addBundleFile(zw *zip.Writer, path, name string) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create bundle entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("write bundle entry %s: %w", name, err)
	}
	return nil
}
