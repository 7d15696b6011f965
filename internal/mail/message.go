// internal/mail/message.go
package mail

import (
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/gomail.v2"
)

// SignatureCID is the fixed content id the HTML body references for the
// trailing full-width signature image.
const SignatureCID = "signature_image"

// XMailer identifies outgoing mail; some clients thread and filter better
// when it is present.
const XMailer = "MailBlast 1.0"

// Attachment is raw file content with its filename, supplied by the caller.
// Reading files from disk happens outside this package.
type Attachment struct {
	Filename string
	Data     []byte
}

// Thread carries the identity headers of one outgoing message.
type Thread struct {
	MessageID  string
	InReplyTo  string // parent Message-ID, empty on an initial send
	References string
	Index      string // Thread-Index value
	Topic      string // Thread-Topic, set when replying
}

// Compose is everything the builder needs to assemble a wire-ready message.
// Build performs no I/O.
type Compose struct {
	From      string
	To        string
	Subject   string
	Body      string
	Thread    Thread
	Signature *Attachment // rendered full-width as the last visual element
	PDF       *Attachment // generic binary attachment
	Inline    *Attachment // secondary inline image, Content-ID = filename
}

// Build assembles the outbound message. With a signature present the body
// becomes plain + HTML alternatives inside a single related container so the
// inline image travels with the HTML part; otherwise the body is plain text.
func Build(c Compose) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", c.From)
	m.SetHeader("To", c.To)
	m.SetHeader("Subject", c.Subject)
	m.SetHeader("Message-ID", c.Thread.MessageID)
	m.SetHeader("X-Mailer", XMailer)

	if c.Thread.InReplyTo != "" {
		m.SetHeader("In-Reply-To", c.Thread.InReplyTo)
		m.SetHeader("References", c.Thread.References)
		m.SetHeader("Thread-Topic", c.Thread.Topic)
	}
	if c.Thread.Index != "" {
		m.SetHeader("Thread-Index", c.Thread.Index)
	}

	m.SetBody("text/plain", c.Body)
	if c.Signature != nil {
		m.AddAlternative("text/html", htmlBody(c.Body))
		m.Embed(SignatureCID,
			gomail.SetCopyFunc(copyBytes(c.Signature.Data)),
			gomail.SetHeader(map[string][]string{
				"Content-Type": {contentType(c.Signature.Filename)},
			}))
	}

	if c.PDF != nil {
		m.Attach(c.PDF.Filename, gomail.SetCopyFunc(copyBytes(c.PDF.Data)))
	}
	if c.Inline != nil {
		m.Embed(c.Inline.Filename, gomail.SetCopyFunc(copyBytes(c.Inline.Data)))
	}
	return m
}

// htmlBody wraps the plain body for the HTML alternative, with the signature
// image as the last visual element at full width.
func htmlBody(body string) string {
	b := strings.ReplaceAll(body, "\n", "<br/>")
	return `<html><body style="margin:0;padding:0;">` +
		`<div style="font-family:Calibri,Arial,sans-serif;font-size:14px;line-height:1.6;padding:16px 0;">` +
		b +
		`</div>` +
		`<div style="width:100%;margin:0;padding:0;display:block;">` +
		`<img src="cid:` + SignatureCID + `" style="width:100%;max-width:100%;display:block;margin:0;padding:0;border:none;" alt="Signature"/>` +
		`</div></body></html>`
}

func copyBytes(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
