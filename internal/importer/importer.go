// Package importer drives the ingestion pipeline: file discovery,
// normalization, deduplication and the all or nothing persistence of one
// report plus its records. It also owns the retention sweep over the report
// file store.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/firefart/dmarcimport/internal/config"
	"github.com/firefart/dmarcimport/internal/dmarc"
	"github.com/firefart/dmarcimport/internal/storage"
)

// Repository is the persistence surface the importer relies on. Implemented
// by database.ReportsRepository.
type Repository interface {
	FindReportByHash(ctx context.Context, fileHash string) (*dmarc.Report, error)
	FindReportByIdentity(ctx context.Context, reportID, orgName string, begin, end time.Time) (*dmarc.Report, error)
	SaveReport(ctx context.Context, report *dmarc.Report) error
	ImportStatistics(ctx context.Context) (*dmarc.Statistics, error)
}

// FileError is one failed file of a run.
type FileError struct {
	File    string
	Message string
}

// Summary is the outcome of a directory run. Processed means transactionally
// persisted, Skipped means a duplicate was detected, Errors counts files that
// failed to read, parse, validate or persist.
type Summary struct {
	Processed    int
	Skipped      int
	Errors       int
	ErrorDetails []FileError
}

type Importer struct {
	repo   Repository
	config *config.Configuration
	log    *logrus.Logger
}

func New(repo Repository, cfg *config.Configuration, log *logrus.Logger) *Importer {
	return &Importer{
		repo:   repo,
		config: cfg,
		log:    log,
	}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
)

// ImportDirectory ingests every .xml file under dir. One bad file never
// aborts the batch: per file failures are collected into the summary. The
// only fatal error is a missing directory, raised before any file is
// touched.
func (imp *Importer) ImportDirectory(ctx context.Context, dir string) (*Summary, error) {
	imp.log.WithField("directory", dir).Info("starting report import")

	store := storage.New(dir)
	files, err := store.ListXML()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ImportError{Kind: ErrorKindDirectoryNotFound, File: dir, Err: err}
		}
		return nil, &ImportError{Kind: ErrorKindReadFailure, File: dir, Err: err}
	}

	imp.log.WithField("total_files", len(files)).Info("found report files")

	summary := &Summary{}
	for _, file := range files {
		result, err := imp.importFile(ctx, store, file)
		if err != nil {
			summary.Errors++
			summary.ErrorDetails = append(summary.ErrorDetails, FileError{
				File:    file.Name,
				Message: err.Error(),
			})
			imp.log.WithFields(logrus.Fields{
				"file": file.Name,
			}).WithError(err).Error("could not import report")
			continue
		}
		switch result {
		case outcomeProcessed:
			summary.Processed++
		case outcomeSkipped:
			summary.Skipped++
		}
	}

	imp.log.WithFields(logrus.Fields{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	}).Info("report import finished")

	return summary, nil
}

// ImportSingleFile ingests one report file by path. A detected duplicate is
// not an error.
func (imp *Importer) ImportSingleFile(ctx context.Context, path string) error {
	store := storage.New(filepath.Dir(path))
	name := filepath.Base(path)

	info, err := store.Stat(name)
	if err != nil {
		return &ImportError{Kind: ErrorKindReadFailure, File: path, Err: err}
	}

	_, err = imp.importFile(ctx, store, info)
	return err
}

func (imp *Importer) importFile(ctx context.Context, store *storage.Store, file storage.FileInfo) (outcome, error) {
	if imp.config.MaxFileSize > 0 && file.Size > imp.config.MaxFileSize {
		return 0, &ImportError{
			Kind: ErrorKindReadFailure,
			File: file.Name,
			Err:  fmt.Errorf("file size %d exceeds limit of %d bytes", file.Size, imp.config.MaxFileSize),
		}
	}

	content, err := store.Read(file.Name)
	if err != nil {
		return 0, &ImportError{Kind: ErrorKindReadFailure, File: file.Name, Err: err}
	}

	hash := sha256.Sum256(content)
	fileHash := hex.EncodeToString(hash[:])

	existing, err := imp.repo.FindReportByHash(ctx, fileHash)
	if err != nil {
		return 0, &ImportError{Kind: ErrorKindPersistFailure, File: file.Name, Err: err}
	}
	if existing != nil {
		imp.log.WithFields(logrus.Fields{
			"file":               file.Name,
			"hash":               fileHash,
			"existing_report_id": existing.ID,
		}).Info("report already imported, skipping")
		return outcomeSkipped, nil
	}

	report, err := dmarc.Parse(content)
	if err != nil {
		return 0, &ImportError{Kind: ErrorKindParseFailure, File: file.Name, Err: err}
	}

	if err := report.ValidateMetadata(); err != nil {
		return 0, &ImportError{Kind: ErrorKindValidateFailure, File: file.Name, Err: err}
	}

	duplicate, err := imp.repo.FindReportByIdentity(ctx, report.ReportID, report.OrgName, report.BeginDate, report.EndDate)
	if err != nil {
		return 0, &ImportError{Kind: ErrorKindPersistFailure, File: file.Name, Err: err}
	}
	if duplicate != nil {
		imp.log.WithFields(logrus.Fields{
			"file":               file.Name,
			"report_id":          report.ReportID,
			"org_name":           report.OrgName,
			"existing_report_id": duplicate.ID,
		}).Info("duplicate report, skipping")
		return outcomeSkipped, nil
	}

	report.FileHash = fileHash
	if err := imp.repo.SaveReport(ctx, report); err != nil {
		// a concurrent importer won the race, the schema constraints
		// rejected the second write
		if errors.Is(err, dmarc.ErrDuplicateReport) {
			imp.log.WithFields(logrus.Fields{
				"file":      file.Name,
				"report_id": report.ReportID,
				"org_name":  report.OrgName,
			}).Info("report was imported concurrently, skipping")
			return outcomeSkipped, nil
		}
		return 0, &ImportError{Kind: ErrorKindPersistFailure, File: file.Name, Err: err}
	}

	imp.log.WithFields(logrus.Fields{
		"file":      file.Name,
		"report_id": report.ReportID,
		"org_name":  report.OrgName,
		"records":   len(report.Records),
	}).Info("report imported")

	return outcomeProcessed, nil
}

// GetImportStatistics returns the aggregate counts over all persisted
// reports and records.
func (imp *Importer) GetImportStatistics(ctx context.Context) (*dmarc.Statistics, error) {
	return imp.repo.ImportStatistics(ctx)
}
