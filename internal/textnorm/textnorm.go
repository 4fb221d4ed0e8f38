// Package textnorm decodes scraped Hebrew text and parses the local timestamps news sites print.
package textnorm

import (
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/encoding/charmap"
)

// Normalizer cleans extracted text. Safe for concurrent use.
type Normalizer struct {
	logger   *slog.Logger
	location *time.Location
	policy   *bluemonday.Policy
	now      func() time.Time
}

// New builds a normalizer; loc is the timezone of the printed timestamps (UTC when nil).
func New(logger *slog.Logger, loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{
		logger:   logger,
		location: loc,
		policy:   bluemonday.StrictPolicy(),
		now:      time.Now,
	}
}

var localTimestampLayouts = []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// ParseTimestamp reads a machine-readable timestamp. RFC 3339 values keep their offset;
// values without one are read in the site's timezone.
func (n *Normalizer) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Decode returns raw as UTF-8 text. When the UTF-8 reading contains the replacement
// marker the bytes are re-read as windows-1255; on decoder failure raw is returned unchanged.
func (n *Normalizer) Decode(raw []byte) (out string) {
	defer func() {
		if recover() != nil {
			out = string(raw)
		}
	}()

	text := string(raw)
	if !strings.ContainsRune(text, utf8.RuneError) {
		return text
	}

	decoded, err := charmap.Windows1255.NewDecoder().Bytes(raw)
	if err != nil {
		n.debug("windows-1255 fallback failed", "error", err)
		return text
	}
	return string(decoded)
}

// DecodeString is Decode for text already held as a string.
func (n *Normalizer) DecodeString(s string) string {
	return n.Decode([]byte(s))
}

// Clean decodes s, strips any markup, unescapes entities and collapses whitespace.
func (n *Normalizer) Clean(s string) string {
	text := n.DecodeString(s)
	if strings.ContainsAny(text, "<>") {
		text = n.policy.Sanitize(text)
	}
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

// ParseLocalDateTime parses "HH:MM DD/MM" in referenceYear. Malformed input is logged
// and yields the current time: callers get a lossy value, never an error.
func (n *Normalizer) ParseLocalDateTime(s string, referenceYear int) time.Time {
	parsed, err := parseLocal(s, referenceYear, n.location)
	if err != "" {
		n.warn("unparseable local timestamp, using now", "input", s, "reason", err)
		return n.now().In(n.location)
	}
	return parsed
}

func parseLocal(s string, year int, loc *time.Location) (time.Time, string) {
	tokens := strings.Fields(s)
	if len(tokens) != 2 {
		return time.Time{}, "expected two tokens"
	}

	clock := strings.Split(tokens[0], ":")
	date := strings.Split(tokens[1], "/")
	if len(clock) != 2 || len(date) != 2 {
		return time.Time{}, "expected HH:MM DD/MM"
	}

	hours, okH := atoi(clock[0])
	minutes, okM := atoi(clock[1])
	day, okD := atoi(date[0])
	month, okMo := atoi(date[1])
	if !okH || !okM || !okD || !okMo {
		return time.Time{}, "non-numeric component"
	}

	switch {
	case hours < 0 || hours > 23:
		return time.Time{}, "hours out of range"
	case minutes < 0 || minutes > 59:
		return time.Time{}, "minutes out of range"
	case day < 1 || day > 31:
		return time.Time{}, "day out of range"
	case month < 1 || month > 12:
		return time.Time{}, "month out of range"
	}

	t := time.Date(year, time.Month(month), day, hours, minutes, 0, 0, loc)
	if t.Day() != day {
		return time.Time{}, "day does not exist in month"
	}
	return t, ""
}

func atoi(s string) (int, bool) {
	v, err := strconv.Atoi(s)
	return v, err == nil
}

func (n *Normalizer) warn(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Warn(msg, args...)
	}
}

func (n *Normalizer) debug(msg string, args ...any) {
	if n.logger != nil {
		n.logger.Debug(msg, args...)
	}
}
