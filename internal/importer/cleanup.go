package importer

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/firefart/dmarcimport/internal/storage"
)

// DefaultMaxAgeDays is the retention age used when neither the caller nor
// the configuration specify one.
const DefaultMaxAgeDays = 30

// CleanupResult is the outcome of a retention sweep.
type CleanupResult struct {
	DeletedFiles int
	DeletedBytes int64
	Errors       []string
}

// CleanupStorage deletes every .xml file in the report store whose mtime is
// older than maxAgeDays. Pass 0 to use the configured retention. The sweep
// is independent of ingestion state: a file is removed whether or not it was
// ever successfully imported. Per file failures are collected, the sweep
// never aborts.
func (imp *Importer) CleanupStorage(maxAgeDays int) *CleanupResult {
	if maxAgeDays <= 0 {
		maxAgeDays = imp.config.RetentionDays
	}
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}

	result := &CleanupResult{}
	var merr *multierror.Error

	store := storage.New(imp.config.ReportsDirectory)
	files, err := store.ListXML()
	if err != nil {
		merr = multierror.Append(merr, fmt.Errorf("could not list report files: %w", err))
		result.Errors = errorStrings(merr)
		return result
	}

	cutoff := time.Now().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	for _, file := range files {
		if !file.ModTime.Before(cutoff) {
			continue
		}
		if err := store.Remove(file.Name); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("could not delete %s: %w", file.Name, err))
			imp.log.WithField("file", file.Name).WithError(err).Error("could not delete old report file")
			continue
		}
		result.DeletedFiles++
		result.DeletedBytes += file.Size
		imp.log.WithFields(logrus.Fields{
			"file":     file.Name,
			"days_old": int(time.Since(file.ModTime).Hours() / 24),
			"size":     file.Size,
		}).Info("deleted old report file")
	}

	result.Errors = errorStrings(merr)
	imp.log.WithFields(logrus.Fields{
		"deleted_files": result.DeletedFiles,
		"deleted_bytes": result.DeletedBytes,
		"errors":        len(result.Errors),
	}).Info("storage cleanup finished")

	return result
}

func errorStrings(merr *multierror.Error) []string {
	if merr == nil {
		return nil
	}
	msgs := make([]string, 0, len(merr.Errors))
	for _, err := range merr.Errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}
