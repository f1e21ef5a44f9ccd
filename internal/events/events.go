// Package events defines the event sink capability the pipeline consumes.
//
// Every step of quote processing is reported as a named event with string
// properties, mirroring the telemetry trail of the upstream deployment.
package events

import "context"

// Defined event names emitted by the pipeline.
const (
	Start               = "Start"
	SplitQuoteSkipped   = "split_quote_skipped"
	ExtractSkipped      = "extract_object_skipped"
	QuoteSplitSuccess   = "quote_split_success"
	QuoteMovedToOrig    = "quote_moved_to_original"
	BlobProcessingError = "blob_processing_error"
	BlobProcessingFail  = "blob_processing_failed"
	GeneralError        = "General Error"
)

// Sink records named events with structured properties.
//
// Implementations must tolerate concurrent calls from multiple workers.
type Sink interface {
	Emit(ctx context.Context, event string, props map[string]string)
}
