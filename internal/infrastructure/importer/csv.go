// Package importer seeds pending domains from CSV exports of drop lists.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"

	"DomainScore/internal/domain"
	"DomainScore/pkg/logger"
)

const (
	defaultChunkSize = 500
	defaultCapacity  = 1_000_000
	falsePositive    = 0.0001
)

// Enqueuer stores new names as pending.
type Enqueuer interface {
	EnqueuePending(ctx context.Context, names []string) (int, error)
}

// Report counts what happened to the rows of one import.
type Report struct {
	Rows       int `json:"rows"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Enqueued   int `json:"enqueued"`
}

// CSVImporter reads domain names from CSV and enqueues them in chunks.
// Duplicates within a run are dropped with a bloom filter, so a rare false
// positive may skip a name; the store's own uniqueness check covers the rest.
type CSVImporter struct {
	store     Enqueuer
	chunkSize int
	capacity  uint
	logger    *slog.Logger
}

// NewCSVImporter wires store; chunkSize defaults to 500.
func NewCSVImporter(store Enqueuer, chunkSize int, log *slog.Logger) *CSVImporter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &CSVImporter{
		store:     store,
		chunkSize: chunkSize,
		capacity:  defaultCapacity,
		logger:    logger.Component(log, "importer"),
	}
}

// Import reads r to the end. The domain is taken from a "domain" column when
// the first row is a header, otherwise from the first column.
func (im *CSVImporter) Import(ctx context.Context, r io.Reader) (Report, error) {
	var report Report

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	seen := bloom.NewWithEstimates(im.capacity, falsePositive)
	column := 0
	chunk := make([]string, 0, im.chunkSize)

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := im.store.EnqueuePending(ctx, chunk)
		if err != nil {
			return fmt.Errorf("enqueue %d domains: %w", len(chunk), err)
		}
		report.Enqueued += n
		chunk = chunk[:0]
		return nil
	}

	for line := 0; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read csv: %w", err)
		}

		if line == 0 {
			if idx, ok := headerColumn(record); ok {
				column = idx
				continue
			}
		}
		report.Rows++

		if column >= len(record) {
			report.Invalid++
			continue
		}
		name, err := domain.Normalize(record[column])
		if err != nil {
			im.logger.Debug("skip invalid row", "line", line+1, "value", record[column])
			report.Invalid++
			continue
		}
		if seen.TestAndAddString(name) {
			report.Duplicates++
			continue
		}

		chunk = append(chunk, name)
		if len(chunk) == im.chunkSize {
			if err := flush(); err != nil {
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}
	im.logger.Info("import finished", "rows", report.Rows, "enqueued", report.Enqueued, "duplicates", report.Duplicates, "invalid", report.Invalid)
	return report, nil
}

func headerColumn(record []string) (int, bool) {
	for i, cell := range record {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "domain", "domain_name", "name":
			return i, true
		}
	}
	return 0, false
}
