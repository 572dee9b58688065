package seeds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Legacy dumps are Mongo exports. Values may be plain JSON or extended JSON
// wrappers such as {"$oid": ...}, {"$date": ...} and {"$numberLong": ...}.

var null = []byte("null")

// wrapper decodes the single-key extended JSON objects.
type wrapper struct {
	OID        *string         `json:"$oid"`
	Date       json.RawMessage `json:"$date"`
	NumberLong *string         `json:"$numberLong"`
	NumberInt  *string         `json:"$numberInt"`
}

func isObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

// OID is a legacy document id or reference.
type OID string

func (o *OID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), null) {
		*o = ""
		return nil
	}
	if isObject(b) {
		var w wrapper
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		if w.OID == nil {
			return fmt.Errorf("object id: unexpected object %s", b)
		}
		*o = OID(*w.OID)
		return nil
	}
	var t Text
	if err := t.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("object id: %w", err)
	}
	*o = OID(t)
	return nil
}

// Text is a string that may have been stored as a number, as happens with
// document and phone numbers.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, null):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	case isObject(b):
		var w wrapper
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		switch {
		case w.NumberLong != nil:
			*t = Text(*w.NumberLong)
		case w.NumberInt != nil:
			*t = Text(*w.NumberInt)
		case w.OID != nil:
			*t = Text(*w.OID)
		default:
			return fmt.Errorf("text: unexpected object %s", b)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("text: %w", err)
		}
		*t = Text(n.String())
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Ptr returns nil for an empty value.
func (t Text) Ptr() *string {
	if t == "" {
		return nil
	}
	s := string(t)
	return &s
}

// Date is a point in time. The zero value means the field was absent.
type Date struct {
	time.Time
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func parseDateString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func (d *Date) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, null):
		d.Time = time.Time{}
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			d.Time = time.Time{}
			return nil
		}
		t, err := parseDateString(s)
		if err != nil {
			return err
		}
		d.Time = t
	case isObject(b):
		var w wrapper
		if err := json.Unmarshal(b, &w); err != nil {
			return err
		}
		if w.Date != nil {
			return d.UnmarshalJSON(w.Date)
		}
		if w.NumberLong != nil {
			return d.UnmarshalJSON([]byte(strconv.Quote(*w.NumberLong)))
		}
		return fmt.Errorf("date: unexpected object %s", b)
	default:
		ms, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
		d.Time = time.UnixMilli(ms).UTC()
	}
	return nil
}

// Ptr returns nil for an absent date.
func (d Date) Ptr() *time.Time {
	if d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// StringList accepts a single string or an array of strings.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, null):
		*l = nil
	case len(b) > 0 && b[0] == '[':
		var items []Text
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if it != "" {
				out = append(out, string(it))
			}
		}
		*l = out
	default:
		var t Text
		if err := t.UnmarshalJSON(b); err != nil {
			return err
		}
		*l = nil
		for _, s := range strings.Split(string(t), ",") {
			if s = strings.TrimSpace(s); s != "" {
				*l = append(*l, s)
			}
		}
	}
	return nil
}
