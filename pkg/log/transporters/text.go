package transporters

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"xdownloader/pkg/log"
)

// Text writes human-readable lines, for local development:
//
//	15:04:05.000 INFO  [web] request completed method=GET path=/ status=200
type Text struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewText returns a text transporter writing to os.Stderr.
func NewText() *Text {
	return &Text{writer: os.Stderr}
}

// NewTextWithWriter returns a text transporter writing to w.
func NewTextWithWriter(w io.Writer) *Text {
	return &Text{writer: w}
}

func (t *Text) Name() string {
	return "text"
}

func (t *Text) Write(entry log.Entry) error {
	var b strings.Builder
	b.WriteString(entry.Timestamp.Format("15:04:05.000"))
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-5s", entry.Level.String())
	if entry.Component != "" {
		fmt.Fprintf(&b, " [%s]", entry.Component)
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, formatValue(entry.Fields[k]))
	}
	if entry.RequestID != "" {
		fmt.Fprintf(&b, " request_id=%s", entry.RequestID)
	}
	b.WriteByte('\n')

	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.writer, b.String())
	return err
}

func (t *Text) Close() error {
	return nil
}

func formatValue(v any) any {
	switch val := v.(type) {
	case string:
		if strings.ContainsAny(val, " \t\n\"") {
			return fmt.Sprintf("%q", val)
		}
		return val
	case time.Duration:
		return val.String()
	default:
		return val
	}
}
