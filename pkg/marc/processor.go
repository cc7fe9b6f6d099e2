package marc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/mitlibraries/llama/pkg/storage"
)

// ExportType is the kind of TIMDEX export Alma produced.
type ExportType string

const (
	Full   ExportType = "FULL"
	Update ExportType = "UPDATE"
)

// ParseExportType accepts FULL or UPDATE in any case.
func ParseExportType(s string) (ExportType, error) {
	switch t := ExportType(strings.ToUpper(s)); t {
	case Full, Update:
		return t, nil
	}
	return "", fmt.Errorf("invalid export type %q, must be one of FULL, UPDATE", s)
}

// ObjectStore concatenates and moves objects.
type ObjectStore interface {
	ConcatenateFiles(ctx context.Context, bucket, prefix, outputKey string) error
	MoveFile(ctx context.Context, key, sourceBucket, destinationBucket string) error
}

type Processor struct {
	store  ObjectStore
	logger *log.Logger
}

func NewProcessor(store ObjectStore, logger *log.Logger) *Processor {
	return &Processor{
		store:  store,
		logger: logger,
	}
}

// KeyPrefix is the prefix Alma export jobs write date's files under.
func KeyPrefix(t ExportType, date string) string {
	return fmt.Sprintf("exlibris/Timdex/%s/ALMA_%s_EXPORT__%s", t, t, date)
}

// OutputFilename is the name of the concatenated export for date.
func OutputFilename(t ExportType, date string) string {
	return fmt.Sprintf("ALMA_%s_EXPORT_%s.mrc", t, date)
}

// ConcatTimdexExport joins the export files for date (YYYYMMDD) in the
// source bucket into one file and moves it to the destination bucket. It
// returns the name of the concatenated file.
func (p *Processor) ConcatTimdexExport(ctx context.Context, t ExportType, sourceBucket, destinationBucket, date string) (string, error) {
	prefix := KeyPrefix(t, date)
	output := OutputFilename(t, date)
	p.logger.Info("concatenating export", "type", t, "prefix", prefix, "output", output)

	err := p.store.ConcatenateFiles(ctx, sourceBucket, prefix, output)
	if err == nil {
		err = p.store.MoveFile(ctx, output, sourceBucket, destinationBucket)
	}
	switch {
	case errors.Is(err, storage.ErrNoFiles):
		return "", fmt.Errorf("No files found in bucket %s with key prefix: %s", sourceBucket, prefix)
	case errors.Is(err, storage.ErrNoSuchBucket):
		return "", fmt.Errorf("One or more supplied buckets does not exist. Bucket names provided were: source_bucket=%s, destination_bucket=%s", sourceBucket, destinationBucket)
	case err != nil:
		return "", err
	}
	return output, nil
}
