// Package mail separates email messages into body, attachments, and inline images.
// RFC-822 messages are parsed with enmime, Outlook .msg files are read as
// compound files, and .mbox mailboxes are split into individual .eml messages.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/courier/pkg/safefs"
)

var (
	// ErrUnsupported indicates an extension that is not an email format.
	ErrUnsupported = errors.New("unsupported email format")
	// ErrEmbeddedMessage indicates a .msg attachment that is itself a message object.
	ErrEmbeddedMessage = errors.New("embedded message attachments are not extracted")
)

// Part is a file written from a message.
type Part struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// PartError reports a single attachment or inline part that could not be written.
type PartError struct {
	Part string
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %s: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// Message is the parsed form of one email container.
type Message struct {
	Subject      string  `json:"subject"`
	From         string  `json:"from"`
	To           string  `json:"to"`
	Cc           string  `json:"cc"`
	Date         string  `json:"date"`
	MessageID    string  `json:"message_id"`
	Body         string  `json:"body"`
	Attachments  []Part  `json:"attachments"`
	InlineImages []Part  `json:"inline_images"`
	Errors       []error `json:"-"`
}

// Extractor parses email containers. It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	logger *slog.Logger
}

// New creates an Extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("system", "mail")}
}

// Supported reports whether path carries an email extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eml", ".msg", ".mbox":
		return true
	}
	return false
}

// Extract parses emailPath and writes its attachments and inline images into outputDir.
// For .mbox files each contained message is written as an .eml attachment.
// A returned error means the container could not be parsed; part failures are in Message.Errors.
func (x *Extractor) Extract(ctx context.Context, emailPath, outputDir string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var (
		msg *Message
		err error
	)

	switch ext := strings.ToLower(filepath.Ext(emailPath)); ext {
	case ".eml":
		msg, err = x.extractEML(emailPath, outputDir)
	case ".msg":
		msg, err = x.extractMSG(emailPath, outputDir)
	case ".mbox":
		msg, err = x.extractMbox(ctx, emailPath, outputDir)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}

	if err != nil {
		return nil, err
	}

	x.logger.Debug(
		"email extracted",
		"path", emailPath,
		"attachments", len(msg.Attachments),
		"inline_images", len(msg.InlineImages),
		"errors", len(msg.Errors),
	)

	return msg, nil
}

func (x *Extractor) extractMbox(ctx context.Context, path, outputDir string) (*Message, error) {
	parts, errs, err := SplitMailbox(ctx, path, outputDir)
	if err != nil {
		return nil, err
	}
	return &Message{Attachments: parts, Errors: errs}, nil
}

// partWriter writes parts of one message into a shared output directory.
type partWriter struct {
	dir string
	msg *Message
}

func (w *partWriter) attachment(name, contentType string, r io.Reader) {
	if name == "" {
		name = fmt.Sprintf("attachment_%d%s", len(w.msg.Attachments), extensionFor(contentType, ".bin"))
	}

	part, err := writePart(w.dir, name, contentType, r)
	if err != nil {
		w.msg.Errors = append(w.msg.Errors, &PartError{Part: name, Err: err})
		return
	}
	w.msg.Attachments = append(w.msg.Attachments, part)
}

func (w *partWriter) inline(contentType string, r io.Reader) {
	name := fmt.Sprintf("inline_%d.%s", len(w.msg.InlineImages), subtype(contentType))

	part, err := writePart(w.dir, name, contentType, r)
	if err != nil {
		w.msg.Errors = append(w.msg.Errors, &PartError{Part: name, Err: err})
		return
	}
	w.msg.InlineImages = append(w.msg.InlineImages, part)
}

func writePart(dir, name, contentType string, r io.Reader) (Part, error) {
	f, err := safefs.CreateUnique(dir, name)
	if err != nil {
		return Part{}, err
	}

	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return Part{}, err
	}

	return Part{
		Name:        filepath.Base(f.Name()),
		Path:        f.Name(),
		ContentType: contentType,
		Size:        n,
	}, nil
}

// subtype returns the bare media subtype: image/svg+xml; charset=x becomes svg.
func subtype(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}

	_, sub, ok := strings.Cut(strings.ToLower(mediaType), "/")
	if !ok || sub == "" {
		return "bin"
	}
	sub, _, _ = strings.Cut(sub, "+")
	return safefs.SanitizeName(sub)
}

func extensionFor(contentType, fallback string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fallback
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return fallback
	}
	return exts[0]
}
