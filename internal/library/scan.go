package library

import (
	"io/fs"
	"log"
	"path/filepath"
	"time"

	"quaver/internal/song"
)

// ScanResult summarizes a library scan.
type ScanResult struct {
	Scanned int
	Failed  int
	Elapsed time.Duration
}

// Scan walks roots, probes every file whose extension appears in extensions,
// and builds a fresh cache. Files that fail to probe are logged and skipped;
// they never abort the scan.
func Scan(roots []string, extensions map[string]bool) (*Cache, ScanResult) {
	start := time.Now()
	cache := New()
	var result ScanResult

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Printf("[LIBRARY] Skipping %s: %v", path, err)
				return nil
			}
			if d.IsDir() || !extensions[filepath.Ext(path)] {
				return nil
			}
			s, err := song.Probe(path)
			if err != nil {
				log.Printf("[LIBRARY] Failed to probe %s: %v", path, err)
				result.Failed++
				return nil
			}
			if err := cache.Insert(path, s); err != nil {
				log.Printf("[LIBRARY] Failed to insert %s: %v", path, err)
				result.Failed++
				return nil
			}
			result.Scanned++
			return nil
		})
		if err != nil {
			log.Printf("[LIBRARY] Walk of %s aborted: %v", root, err)
		}
	}

	result.Elapsed = time.Since(start)
	log.Printf("[LIBRARY] Scan complete: %d songs, %d failures in %v",
		result.Scanned, result.Failed, result.Elapsed)
	return cache, result
}
