package transporters

import (
	"encoding/json"
	"io"
	"os"
	"sync"

	"xdownloader/pkg/log"
)

// JSON writes one JSON object per line.
type JSON struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewStdout returns a JSON transporter writing to os.Stdout.
func NewStdout() *JSON {
	return &JSON{writer: os.Stdout}
}

// NewStdoutWithWriter returns a JSON transporter writing to w.
func NewStdoutWithWriter(w io.Writer) *JSON {
	return &JSON{writer: w}
}

func (s *JSON) Name() string {
	return "json"
}

func (s *JSON) Write(entry log.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.writer.Write(data)
	return err
}

func (s *JSON) Close() error {
	return nil
}
