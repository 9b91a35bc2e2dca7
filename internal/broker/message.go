package broker

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SchemaVersion is the payload version written by Publisher.
const SchemaVersion = "1.0"

// timestampLayouts are tried in order. The second accepts timestamps
// without a zone designator, which are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
}

// UpdateMessage is the payload announcing a new inference engine base URL.
type UpdateMessage struct {
	Timestamp time.Time `json:"Timestamp"`
	NewURL    string    `json:"NewUrl"`
	ServiceID string    `json:"ServiceId"`
	Version   string    `json:"Version"`
}

// lookup returns the first of names present in obj.
func lookup(obj gjson.Result, names ...string) gjson.Result {
	for _, name := range names {
		if r := obj.Get(name); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func optionalString(obj gjson.Result, field string, names ...string) (string, error) {
	r := lookup(obj, names...)
	switch r.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return r.Str, nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrMalformedMessage, field)
	}
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// DecodeUpdateMessage parses a JSON payload. Field names are matched in the
// PascalCase wire form first, then camelCase. Every failure wraps
// ErrMalformedMessage.
func DecodeUpdateMessage(body []byte) (UpdateMessage, error) {
	if !gjson.ValidBytes(body) {
		return UpdateMessage{}, fmt.Errorf("%w: invalid JSON", ErrMalformedMessage)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return UpdateMessage{}, fmt.Errorf("%w: payload is not an object", ErrMalformedMessage)
	}

	var (
		msg UpdateMessage
		err error
	)
	if msg.NewURL, err = optionalString(root, "NewUrl", "NewUrl", "newUrl"); err != nil {
		return UpdateMessage{}, err
	}
	if msg.ServiceID, err = optionalString(root, "ServiceId", "ServiceId", "serviceId"); err != nil {
		return UpdateMessage{}, err
	}

	// Version is sometimes sent as a bare number.
	version := lookup(root, "Version", "version")
	switch version.Type {
	case gjson.String:
		msg.Version = version.Str
	case gjson.Number:
		msg.Version = version.Raw
	}

	raw, err := optionalString(root, "Timestamp", "Timestamp", "timestamp")
	if err != nil {
		return UpdateMessage{}, err
	}
	if raw != "" {
		ts, perr := parseTimestamp(raw)
		if perr != nil {
			return UpdateMessage{}, fmt.Errorf("%w: timestamp %q: %w", ErrMalformedMessage, raw, perr)
		}
		msg.Timestamp = ts
	}

	msg.NewURL = strings.TrimSpace(msg.NewURL)
	return msg, nil
}

// Encode renders the message in its wire form.
func (m UpdateMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// MajorVersion returns the leading integer of Version.
func (m UpdateMessage) MajorVersion() (int, bool) {
	if m.Version == "" {
		return 0, false
	}
	head, _, _ := strings.Cut(m.Version, ".")
	major, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return major, true
}
