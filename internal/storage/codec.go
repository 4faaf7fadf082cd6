package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampFormat is fixed width so stored timestamps sort lexicographically
// in every backend.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant that serialises in TimestampFormat.
type Timestamp struct {
	time.Time
}

// NewTimestamp converts t to UTC at millisecond precision.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// String renders the timestamp in TimestampFormat.
func (t Timestamp) String() string {
	return t.UTC().Format(TimestampFormat)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts TimestampFormat and any RFC 3339 time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// Encode converts a struct (or map) into a Document. An "id" key is
// dropped because IDs live beside the document, never inside it.
func Encode(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("encode document: %T is not an object", v)
	}
	delete(doc, "id")
	return doc, nil
}

// Decode fills out from rec. The record ID is exposed to out as "id".
func Decode(rec Record, out any) error {
	doc := make(Document, len(rec.Data)+1)
	for k, v := range rec.Data {
		doc[k] = v
	}
	doc["id"] = rec.ID
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode record %s: %w", rec.ID, err)
	}
	return nil
}

// normalizeValue maps any JSON-serialisable value onto the small set of
// kinds the backends compare: float64, string, bool, nil, []any, map[string]any.
func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, float64:
		return x, nil
	case time.Time:
		return NewTimestamp(x).String(), nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// normalizeDocument round-trips doc through JSON so backends never hold
// caller-owned maps or Go-specific types.
func normalizeDocument(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	var out Document
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("normalize document: %w", err)
	}
	delete(out, "id")
	return out, nil
}

// cloneDocument deep-copies a normalised document.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case Document:
		return map[string]any(cloneDocument(x))
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}
