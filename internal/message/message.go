package message

// This file provides the common data objects used by the rest of the
// program.

import "time"

// Raw is one message as fetched from the mail source, flattened for
// parsing.
type Raw struct {
	// The permanent and unique ID of the message in the storage
	// system.
	ID string

	// Subject and From are copied verbatim from the message
	// headers.
	Subject string
	From    string

	// ReceivedAt is the server-assigned receipt time, never a time
	// parsed out of header or body text. Zero when the source did
	// not supply one; such messages are unusable.
	ReceivedAt time.Time

	// Body is every decoded MIME part concatenated in document
	// order. May be empty for snippet-only messages.
	Body string

	// Snippet is the source's short preview of the body.
	Snippet string
}

// SwipeEvent is one confirmed meal-credit usage, derived from exactly
// one message. Meals is always at least 1; a message whose meal count
// cannot be recovered never becomes an event.
type SwipeEvent struct {
	MessageID  string    `json:"messageId"`
	OrderID    string    `json:"orderId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
	Meals      int       `json:"meals"`
	Store      string    `json:"store,omitempty"`
	Items      []string  `json:"items,omitempty"`
	RawSnippet string    `json:"rawSnippet"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	InWeek     bool      `json:"inWeek"`
}

// ScanResult is the aggregate answer for one scan invocation. Used
// respects the caller's ignore-week flag; UsedRecent and
// TotalFoundRecent always cover the whole requested day range,
// window-independent.
type ScanResult struct {
	WeekStart        time.Time    `json:"weekStart"`
	Used             int          `json:"used"`
	UsedRecent       int          `json:"usedRecent"`
	Events           []SwipeEvent `json:"events"`
	TotalFoundRecent int          `json:"totalFoundRecent"`
}
