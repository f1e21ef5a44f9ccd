package quote_test

import (
	"testing"

	"github.com/sbtplatform/quote-splitter/internal/quote"
	"github.com/stretchr/testify/assert"
)

func TestParseBlobName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name string

		wantTimestamp string
		wantQuoteID   string
	}{
		"Conventional name": {
			name:          "20240101120000_Q1.json",
			wantTimestamp: "20240101120000",
			wantQuoteID:   "Q1",
		},
		"Name with extra parts": {
			name:          "20240101120000_Q1_copy.json",
			wantTimestamp: "20240101120000",
			wantQuoteID:   "Q1",
		},
		"Nested path": {
			name:          "incoming/20240101120000_Q1.json",
			wantTimestamp: "20240101120000",
			wantQuoteID:   "Q1",
		},
		"No underscore":  {name: "quote.json"},
		"Empty name":     {name: ""},
		"Only extension": {name: ".json"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			timestamp, quoteID := quote.ParseBlobName(tc.name)
			assert.Equal(t, tc.wantTimestamp, timestamp, "timestamp should match")
			assert.Equal(t, tc.wantQuoteID, quoteID, "quote id should match")
		})
	}
}

func TestExtractFileName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		timestamp  string
		keyValue   string
		objectName string

		want string
	}{
		"Plain key": {
			timestamp:  "20240101120000",
			keyValue:   "Q1",
			objectName: "Vehicle",
			want:       "20240101120000_Q1_Vehicle.json",
		},
		"Key with path separators": {
			timestamp:  "20240101120000",
			keyValue:   `a/b\c`,
			objectName: "Vehicle",
			want:       "20240101120000_a-b-c_Vehicle.json",
		},
		"Key with reserved characters": {
			timestamp:  "20240101120000",
			keyValue:   `q:*?"<>|`,
			objectName: "Vehicle",
			want:       "20240101120000_q-------_Vehicle.json",
		},
		"Key with compatibility characters": {
			timestamp:  "20240101120000",
			keyValue:   "Qﬁ", // fi ligature normalizes to "fi"
			objectName: "Vehicle",
			want:       "20240101120000_Qfi_Vehicle.json",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := quote.ExtractFileName(tc.timestamp, tc.keyValue, tc.objectName)
			assert.Equal(t, tc.want, got, "extract file name should match")
		})
	}
}
