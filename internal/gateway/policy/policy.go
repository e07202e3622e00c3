// Package policy holds the per-media-kind acceptance rules and the pure
// request validators built on them.
package policy

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"hookgate/internal/gateway/models"
	dErrors "hookgate/pkg/domain-errors"
)

// MatchRule selects how a declared MIME type is compared against the policy value.
type MatchRule int

const (
	// MatchExact requires the media type to equal the policy value.
	MatchExact MatchRule = iota
	// MatchPrefix requires the media type to start with the policy value.
	MatchPrefix
)

const (
	KB = 1024
	MB = 1024 * KB

	MaxDocumentBytes = 10 * MB
	MaxImageBytes    = 10 * MB
	MaxVideoBytes    = 100 * MB
	MaxAudioBytes    = 50 * MB
)

// Entry is the acceptance rule for one media kind.
type Entry struct {
	Kind     models.Channel
	Rule     MatchRule
	Mime     string
	MaxBytes int64
}

// Label describes the accepted types for error messages, e.g. "image/*".
func (e Entry) Label() string {
	if e.Rule == MatchPrefix {
		return e.Mime + "*"
	}
	return e.Mime
}

// Accepts reports whether the declared MIME type satisfies this entry.
// Parameters such as charset are ignored and comparison is case-insensitive.
func (e Entry) Accepts(declaredMime string) bool {
	mediaType := normalizeMediaType(declaredMime)
	if mediaType == "" {
		return false
	}
	switch e.Rule {
	case MatchExact:
		return mediaType == e.Mime
	case MatchPrefix:
		return strings.HasPrefix(mediaType, e.Mime)
	default:
		return false
	}
}

// Table maps each media kind to exactly one Entry. It is read-only after construction.
type Table struct {
	entries map[models.Channel]Entry
}

// Default returns the production policy table.
func Default() *Table {
	t, err := NewTable(
		Entry{Kind: models.ChannelDocument, Rule: MatchExact, Mime: "application/pdf", MaxBytes: MaxDocumentBytes},
		Entry{Kind: models.ChannelImage, Rule: MatchPrefix, Mime: "image/", MaxBytes: MaxImageBytes},
		Entry{Kind: models.ChannelVideo, Rule: MatchPrefix, Mime: "video/", MaxBytes: MaxVideoBytes},
		Entry{Kind: models.ChannelAudio, Rule: MatchPrefix, Mime: "audio/", MaxBytes: MaxAudioBytes},
	)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTable builds a policy table, enforcing one entry per media kind and a
// positive size ceiling for each.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{entries: make(map[models.Channel]Entry, len(entries))}
	for _, e := range entries {
		if !e.Kind.IsMedia() {
			return nil, fmt.Errorf("policy: %q is not a media kind", e.Kind)
		}
		if e.MaxBytes <= 0 {
			return nil, fmt.Errorf("policy: max bytes for %s must be positive", e.Kind)
		}
		if _, dup := t.entries[e.Kind]; dup {
			return nil, fmt.Errorf("policy: duplicate entry for %s", e.Kind)
		}
		e.Mime = strings.ToLower(e.Mime)
		t.entries[e.Kind] = e
	}
	for _, kind := range models.MediaKinds {
		if _, ok := t.entries[kind]; !ok {
			return nil, fmt.Errorf("policy: missing entry for %s", kind)
		}
	}
	return t, nil
}

// Entry returns the rule for kind.
func (t *Table) Entry(kind models.Channel) (Entry, bool) {
	e, ok := t.entries[kind]
	return e, ok
}

// MaxBytes returns the size ceiling for kind, or 0 for unknown kinds.
func (t *Table) MaxBytes(kind models.Channel) int64 {
	return t.entries[kind].MaxBytes
}

// ValidateUpload checks an upload against the policy for its kind.
// Checks run in a fixed order and the first failure wins.
func (t *Table) ValidateUpload(kind models.Channel, declaredMime string, payloadLength int64, destinationURL string) error {
	entry, ok := t.entries[kind]
	if !ok {
		return dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported channel %q", kind))
	}
	if payloadLength <= 0 {
		return dErrors.New(dErrors.CodeMissingPayload, "file is required")
	}
	if strings.TrimSpace(destinationURL) == "" {
		return missingDestination()
	}
	if !entry.Accepts(declaredMime) {
		return dErrors.New(dErrors.CodeUnsupportedMediaType,
			fmt.Sprintf("unsupported file type %q for %s: expected %s", declaredMime, kind, entry.Label()))
	}
	if payloadLength > entry.MaxBytes {
		return TooLarge(entry)
	}
	return nil
}

// ValidateChat checks the required chat fields.
func ValidateChat(message, destinationURL string) error {
	if strings.TrimSpace(message) == "" {
		return dErrors.New(dErrors.CodeMissingMessage, "message is required")
	}
	if strings.TrimSpace(destinationURL) == "" {
		return missingDestination()
	}
	return nil
}

// TooLarge builds the payload-too-large error naming the entry's limit.
func TooLarge(e Entry) error {
	return dErrors.New(dErrors.CodePayloadTooLarge,
		fmt.Sprintf("file too large: maximum size for %s is %d bytes (%s)", e.Kind, e.MaxBytes, humanSize(e.MaxBytes)))
}

// ResolveMime returns the declared type, or a type sniffed from the payload
// when the client did not declare one.
func ResolveMime(declared string, payload []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && normalizeMediaType(declared) != "application/octet-stream" {
		return declared
	}
	if len(payload) == 0 {
		return declared
	}
	return mimetype.Detect(payload).String()
}

func missingDestination() error {
	return dErrors.New(dErrors.CodeMissingDestination, "webhookUrl is required")
}

func normalizeMediaType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(s)
	if err != nil {
		before, _, _ := strings.Cut(s, ";")
		mediaType = strings.TrimSpace(before)
	}
	return strings.ToLower(mediaType)
}

func humanSize(n int64) string {
	if n < MB {
		if n%KB == 0 {
			return fmt.Sprintf("%d KB", n/KB)
		}
		return fmt.Sprintf("%.1f KB", float64(n)/KB)
	}
	if n%MB == 0 {
		return fmt.Sprintf("%d MB", n/MB)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/MB)
}
