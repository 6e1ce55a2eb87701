// Package storage keeps exported reports on the local filesystem.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)

// ReportArchive stores rendered monthly reports under baseDir as
// <YYYY-MM>/<user id>-<name>.xlsx
type ReportArchive struct {
	baseDir string
	logger  *zap.Logger
}

// NewReportArchive creates a ReportArchive rooted at baseDir
func NewReportArchive(baseDir string, logger *zap.Logger) *ReportArchive {
	return &ReportArchive{
		baseDir: baseDir,
		logger:  logger,
	}
}

// PathFor returns the relative path a report is archived under
func (a *ReportArchive) PathFor(report *entity.MonthlyReport) string {
	name := fmt.Sprintf("%d", report.Assignee.ID)
	if safe := SanitizeName(report.Assignee.DisplayName()); safe != "" {
		name += "-" + safe
	}
	return filepath.Join(fmt.Sprintf("%04d-%02d", report.Year, int(report.Month)), name+".xlsx")
}

// Save renders the report with render and writes it to the archive. It
// returns the full path of the written file.
func (a *ReportArchive) Save(ctx context.Context, report *entity.MonthlyReport, render func(w *bytes.Buffer) error) (string, error) {
	if report == nil || report.Assignee == nil {
		return "", fmt.Errorf("report has no assignee")
	}

	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}

	rel := a.PathFor(report)
	if err := a.write(ctx, rel, buf.Bytes()); err != nil {
		return "", err
	}
	return a.FullPath(rel), nil
}

// Exists checks if a file exists at the relative path
func (a *ReportArchive) Exists(path string) bool {
	_, err := os.Stat(a.FullPath(path))
	return err == nil
}

// Read returns the content stored at the relative path
func (a *ReportArchive) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath := a.FullPath(path)
	if err := a.validatePath(fullPath); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		a.logger.Error("Failed to read file", zap.String("path", fullPath), zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return content, nil
}

// FullPath converts a relative path to full path
func (a *ReportArchive) FullPath(relativePath string) string {
	return filepath.Join(a.baseDir, relativePath)
}

func (a *ReportArchive) write(ctx context.Context, path string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fullPath := a.FullPath(path)
	if err := a.validatePath(fullPath); err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		a.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		a.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write file: %w", err)
	}

	a.logger.Info("Report archived",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))
	return nil
}

// validatePath checks that the path stays within baseDir
func (a *ReportArchive) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(a.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

// SanitizeName keeps only ASCII letters, digits, hyphens and underscores
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, " ", "_")
	return unsafeNameChars.ReplaceAllString(name, "")
}
