package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/ivmartynov/ladderbot/internal/domain"
)

const (
	archivePrefix = "archive/deals/"
	keyTimeLayout = "20060102T150405Z"
)

// Archiver periodically uploads newly closed deals to the object store as
// newline-delimited JSON, one file per run keyed by the cutoff time. Deals
// stay in the primary store; the archive is a backup, never a migration.
type Archiver struct {
	writer   *Writer
	reader   *Reader
	deals    domain.DealStore
	interval time.Duration
	logger   *slog.Logger
}

// NewArchiver creates an Archiver running at the given interval.
func NewArchiver(writer *Writer, reader *Reader, deals domain.DealStore, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		reader:   reader,
		deals:    deals,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on the configured interval until the context is canceled.
// The cursor resumes from the newest existing archive key, so a restart does
// not duplicate already archived deals.
func (a *Archiver) Run(ctx context.Context) error {
	since, err := a.resumeCursor(ctx)
	if err != nil {
		a.logger.Warn("archive cursor recovery failed, archiving everything",
			slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cutoff := time.Now().UTC()
		count, err := a.archiveOnce(ctx, since, cutoff)
		if err != nil {
			a.logger.Error("deal archive failed", slog.String("error", err.Error()))
			continue
		}
		since = cutoff
		if count > 0 {
			a.logger.Info("deals archived",
				slog.Int("count", count),
				slog.Time("cutoff", cutoff))
		}
	}
}

// archiveOnce uploads all deals closed in (since, cutoff] as one JSONL
// object. Nothing is uploaded when the window is empty.
func (a *Archiver) archiveOnce(ctx context.Context, since, cutoff time.Time) (int, error) {
	deals, err := a.deals.ListSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("query deals: %w", err)
	}
	if len(deals) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(deals)
	if err != nil {
		return 0, fmt.Errorf("marshal deals: %w", err)
	}

	key := archivePrefix + cutoff.Format(keyTimeLayout) + ".jsonl"
	if err := a.writer.Put(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, err
	}
	return len(deals), nil
}

// resumeCursor reads the newest archive key's embedded timestamp. A missing
// or unparsable archive yields the zero time, which archives the whole deal
// history on the next run.
func (a *Archiver) resumeCursor(ctx context.Context) (time.Time, error) {
	keys, err := a.reader.List(ctx, archivePrefix)
	if err != nil {
		return time.Time{}, err
	}
	if len(keys) == 0 {
		return time.Time{}, nil
	}
	sort.Strings(keys)

	name := strings.TrimSuffix(path.Base(keys[len(keys)-1]), ".jsonl")
	cursor, err := time.Parse(keyTimeLayout, name)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse archive key %q: %w", name, err)
	}
	return cursor, nil
}

// marshalJSONL serialises the deals as newline-delimited JSON.
func marshalJSONL(deals []domain.Deal) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, deal := range deals {
		if err := enc.Encode(deal); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
