package sender

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/trackd/filewatchrest/pkg/config"
	"github.com/trackd/filewatchrest/pkg/resilience"
)

// interpret records the dispatch outcome and, on success with
// MoveProcessedFiles set, archives the file.
func (p *Pool) interpret(path string, n Notification, cfg config.RestPostConfig, outcome resilience.Outcome) Result {
	if outcome.ShortCircuited {
		p.diag.RecordFileEvent(path, false, nil)
		return Result{Success: false, Err: outcome.LastError}
	}

	if outcome.Success {
		status := &outcome.LastStatus
		p.diag.RecordFileEvent(path, true, status)

		if cfg.MoveProcessedFiles {
			if err := p.archive(path, cfg); err != nil {
				p.log.Warn("archive failed", "path", path, "error", err)
			}
		}
		return Result{Success: true, StatusCode: outcome.LastStatus}
	}

	var status *int
	if outcome.LastStatus != 0 {
		s := outcome.LastStatus
		status = &s
	}
	p.diag.RecordFileEvent(path, false, status)
	return Result{Success: false, StatusCode: outcome.LastStatus, Err: outcome.LastError}
}

// archive moves path into <folderOfFile>/<ProcessedFolder>, prefixing
// the basename with a yyyyMMdd_HHmmss_fff timestamp and, on collision,
// appending _N (starting at 1) before the file extension.
func (p *Pool) archive(path string, cfg config.RestPostConfig) error {
	processedFolder := cfg.ProcessedFolder
	if processedFolder == "" {
		processedFolder = "processed"
	}

	destDir := filepath.Join(filepath.Dir(path), processedFolder)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create processed folder: %w", err)
	}

	// yyyyMMdd_HHmmss_fff, built from Go's reference layout by swapping
	// the millisecond separator from "." to "_".
	raw := time.Now().Format("20060102_150405.000")
	timestamp := raw[:len(raw)-4] + "_" + raw[len(raw)-3:]
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	dest := filepath.Join(destDir, timestamp+"_"+base)
	for n := 1; fileExists(dest); n++ {
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%s_%d%s", timestamp, stem, n, ext))
	}

	return os.Rename(path, dest)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
