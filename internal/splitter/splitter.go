// Package splitter implements the per-quote workflow: read, validate, extract,
// write extract files, archive the original and report events along the way.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/sbtplatform/quote-splitter/internal/blobstore"
	"github.com/sbtplatform/quote-splitter/internal/constants"
	"github.com/sbtplatform/quote-splitter/internal/events"
	"github.com/sbtplatform/quote-splitter/internal/quote"
)

type rules interface {
	KeyField() string
	ExtractObjects() []string
}

// Processor executes the full workflow for one quote at a time.
//
// Errors at any I/O boundary are reported as events and returned to the
// caller; they never affect other quotes. A quote is either skipped in place
// or fully processed (extract files written, then the original archived).
type Processor struct {
	store blobstore.Store
	sink  events.Sink
	rules rules

	timeNow func() time.Time
}

type options struct {
	timeNow func() time.Time
}

// Options represents an optional function to override Processor default values.
type Options func(*options)

// WithTimeNow overrides the clock used for derived filenames.
func WithTimeNow(now func() time.Time) Options {
	return func(o *options) {
		o.timeNow = now
	}
}

// New creates a new Processor instance.
func New(store blobstore.Store, sink events.Sink, r rules, args ...Options) (*Processor, error) {
	if store == nil || sink == nil || r == nil {
		return nil, fmt.Errorf("store, sink and rules must be set")
	}

	opts := options{
		timeNow: time.Now,
	}
	for _, opt := range args {
		opt(&opts)
	}

	return &Processor{
		store:   store,
		sink:    sink,
		rules:   r,
		timeNow: opts.timeNow,
	}, nil
}

// Process runs the per-quote workflow for the blob at blobPath.
//
// Skip conditions (missing or empty key field, empty extract objects) are
// reported as events and are not errors. A returned error means the quote was
// abandoned for this run with its source blob left in place, so a later run
// retries it.
func (p *Processor) Process(ctx context.Context, blobPath string) error {
	data, err := p.store.Read(ctx, blobPath)
	if err != nil {
		p.reportError(ctx, blobPath, "read", err)
		return fmt.Errorf("failed to read quote: %w", err)
	}

	doc, err := quote.Parse(data)
	if err != nil {
		p.reportError(ctx, blobPath, "parse", err)
		return fmt.Errorf("failed to parse quote: %w", err)
	}

	keyField := p.rules.KeyField()
	keyValue, err := doc.Key(keyField)
	if errors.Is(err, quote.ErrKeyMissing) {
		p.sink.Emit(ctx, events.SplitQuoteSkipped, map[string]string{
			"blob_name": blobPath,
			"key_field": keyField,
			"reason":    "key field not found in quote data",
		})
		return nil
	} else if err != nil {
		p.reportError(ctx, blobPath, "key", err)
		return fmt.Errorf("failed to extract key field: %w", err)
	}

	timestamp, quoteID := quote.ParseBlobName(blobPath)
	if quoteID == "" {
		quoteID = keyValue
	}
	if timestamp == "" {
		timestamp = strconv.FormatInt(p.timeNow().Unix(), 10)
	}

	for _, objectName := range p.rules.ExtractObjects() {
		raw, present := doc.Object(objectName)
		if !present || quote.IsEmpty(raw) {
			p.sink.Emit(ctx, events.ExtractSkipped, map[string]string{
				"blob_name":   blobPath,
				"object_name": objectName,
				"quote_id":    keyValue,
			})
			continue
		}

		payload, err := doc.BuildExtract(keyField, objectName)
		if err != nil {
			p.reportError(ctx, blobPath, "extract "+objectName, err)
			return fmt.Errorf("failed to build extract for %q: %w", objectName, err)
		}

		outPath := path.Join(objectName, quote.ExtractFileName(timestamp, quoteID, objectName))
		if err := p.store.Write(ctx, outPath, payload); err != nil {
			p.reportError(ctx, blobPath, "write "+outPath, err)
			return fmt.Errorf("failed to write extract file: %w", err)
		}

		p.sink.Emit(ctx, events.QuoteSplitSuccess, map[string]string{
			"blob_name":   outPath,
			"object_name": objectName,
			"quote_id":    keyValue,
		})
		slog.Debug("Extract file written", "file", outPath, "quote", keyValue)
	}

	return p.archive(ctx, blobPath, keyValue)
}

// archive copies the original to the archive folder, then deletes the source.
// The delete never happens if the copy failed, so a failed archive is retried
// on the next run.
func (p *Processor) archive(ctx context.Context, blobPath, keyValue string) error {
	archivePath := path.Join(constants.OriginalFolder, path.Base(blobPath))

	if err := p.store.Copy(ctx, blobPath, archivePath); err != nil {
		p.reportError(ctx, blobPath, "archive copy", err)
		return fmt.Errorf("failed to archive quote: %w", err)
	}

	if err := p.store.Delete(ctx, blobPath); err != nil {
		p.reportError(ctx, blobPath, "archive delete", err)
		return fmt.Errorf("failed to remove archived quote: %w", err)
	}

	p.sink.Emit(ctx, events.QuoteMovedToOrig, map[string]string{
		"original_path": blobPath,
		"new_path":      archivePath,
		"quote_id":      keyValue,
	})
	return nil
}

func (p *Processor) reportError(ctx context.Context, blobPath, step string, err error) {
	p.sink.Emit(ctx, events.BlobProcessingError, map[string]string{
		"blob_name": blobPath,
		"unit":      step,
		"error_msg": err.Error(),
	})
}
