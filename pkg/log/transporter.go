package log

// Transporter is a log destination.
type Transporter interface {
	Name() string

	// Write delivers one entry. It is only called from the buffer worker.
	Write(entry Entry) error

	// Close releases resources. Write is not called afterwards.
	Close() error
}
