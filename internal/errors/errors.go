// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignExists rejects a launch that reuses an existing campaign name.
type ErrCampaignExists struct {
	Name string
}

func (e *ErrCampaignExists) Error() string {
	return fmt.Sprintf("campaign %q already exists", e.Name)
}

func NewCampaignExists(name string) error {
	return &ErrCampaignExists{Name: name}
}

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	Name string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %q not found", e.Name)
}

func NewCampaignNotFound(name string) error {
	return &ErrCampaignNotFound{Name: name}
}

// ErrMissingPlaceholder names the template key absent from the recipient's
// data. Per-recipient, never fatal to a batch.
type ErrMissingPlaceholder struct {
	Key string
}

func (e *ErrMissingPlaceholder) Error() string {
	return fmt.Sprintf("template error: missing placeholder {%s} in data", e.Key)
}

func NewMissingPlaceholder(key string) error {
	return &ErrMissingPlaceholder{Key: key}
}

// ErrRender covers template failures other than a missing key.
type ErrRender struct {
	Reason string
}

func (e *ErrRender) Error() string {
	return fmt.Sprintf("template rendering error: %s", e.Reason)
}

func NewRender(reason string) error {
	return &ErrRender{Reason: reason}
}

// ErrConnect wraps a failed session dial, TLS handshake, or authentication:
// the transport performs login as part of establishing the connection, so a
// rejected credential surfaces here too. Fatal to the whole batch: nothing
// is sent when it occurs.
type ErrConnect struct {
	Host string
	Port int
	Err  error
}

func (e *ErrConnect) Error() string {
	return fmt.Sprintf("SMTP connection to %s:%d failed: %v", e.Host, e.Port, e.Err)
}

func (e *ErrConnect) Unwrap() error { return e.Err }

func NewConnect(host string, port int, err error) error {
	return &ErrConnect{Host: host, Port: port, Err: err}
}

// ErrStoreWrite is propagated: a campaign update that cannot be persisted
// must never be silently lost.
type ErrStoreWrite struct {
	Path string
	Err  error
}

func (e *ErrStoreWrite) Error() string {
	return fmt.Sprintf("failed to write store file %s: %v", e.Path, e.Err)
}

func (e *ErrStoreWrite) Unwrap() error { return e.Err }

func NewStoreWrite(path string, err error) error {
	return &ErrStoreWrite{Path: path, Err: err}
}
