package model

import "time"

// Scope identifies the work category a message is routed to.
type Scope string

const (
	ScopeTenders Scope = "tenders"
	ScopeBudgets Scope = "budgets"
	ScopeKit     Scope = "kit"
	ScopeWeb     Scope = "web"
	ScopeDesign  Scope = "design"
	ScopeSocial  Scope = "social"
)

// MaxBodyLength bounds the plain-text body carried on a Message so
// downstream payloads stay small.
const MaxBodyLength = 2000

// Credential holds the already-resolved login material for one mailbox.
// It is supplied per invocation and never persisted.
type Credential struct {
	// OwnerID is the mailbox-owner identifier (e.g. "montse",
	// "licitacions") used for credential lookup and dedup keys.
	OwnerID string

	Username string
	Password string
	Host     string
	Port     string
}

// Attachment describes one attachment part of a message. Content is
// only populated by the attachment-download operation.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`

	// Content holds the base64-encoded payload when downloaded.
	Content string `json:"content_base64,omitempty"`
}

// Message is the canonical in-memory record for one mail message.
// UID is the protocol-assigned identifier, stable within a folder but
// not across moves; MessageID is the header value that survives moves.
type Message struct {
	UID         uint32       `json:"id"`
	MessageID   string       `json:"messageId,omitempty"`
	From        string       `json:"from"`
	To          string       `json:"to"`
	Subject     string       `json:"subject"`
	Date        string       `json:"date"`
	Body        string       `json:"body"`
	HTMLBody    string       `json:"htmlBody,omitempty"`
	Read        bool         `json:"read"`
	Flags       []string     `json:"flags,omitempty"`
	Attachments []Attachment `json:"attachments"`

	// Partial marks a record produced in headers-only mode, where the
	// body is a placeholder and attachments are heuristic.
	Partial bool `json:"isPartial,omitempty"`
}

// HasAttachments reports whether any attachment metadata was recorded.
func (m *Message) HasAttachments() bool {
	return len(m.Attachments) > 0
}

// ProcessedMarker records that one message of one mailbox has been
// evaluated, whether or not a work item came out of it. Its presence
// is the sole dedup gate; it is written at most once and never
// updated.
type ProcessedMarker struct {
	Owner       string    `json:"owner"`
	UID         uint32    `json:"uid"`
	Subject     string    `json:"subject,omitempty"`
	MessageID   string    `json:"message_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Activity is one entry of the pipeline's activity trail, written when
// a work item is auto-created from a message.
type Activity struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// WorkItem is the record handed to the external task board when a
// message qualifies for automatic creation. Ownership passes to the
// board immediately; the pipeline never mutates it afterwards.
type WorkItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Scope       Scope     `json:"scope"`
	Assignee    string    `json:"assignee"`
	Origin      string    `json:"origin"`
	SourceOwner string    `json:"source_owner"`
	SourceUID   uint32    `json:"source_uid"`
	CreatedAt   time.Time `json:"created_at"`
}
