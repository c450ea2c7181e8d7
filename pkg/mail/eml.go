package mail

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/jhillyerd/enmime"
)

func (x *Extractor) extractEML(path, outputDir string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	env, err := enmime.ReadEnvelope(f)
	if err != nil {
		return nil, fmt.Errorf("parse eml: %w", err)
	}

	msg := &Message{
		Subject:   env.GetHeader("Subject"),
		From:      env.GetHeader("From"),
		To:        env.GetHeader("To"),
		Cc:        env.GetHeader("Cc"),
		Date:      env.GetHeader("Date"),
		MessageID: env.GetHeader("Message-Id"),
		Body:      env.Text,
	}
	if strings.TrimSpace(msg.Body) == "" {
		msg.Body = env.HTML
	}

	for _, e := range env.Errors {
		if e.Severe {
			msg.Errors = append(msg.Errors, fmt.Errorf("mime %s: %s", e.Name, e.Detail))
			continue
		}
		x.logger.Debug("mime warning", "path", path, "name", e.Name, "detail", e.Detail)
	}

	w := &partWriter{dir: outputDir, msg: msg}

	for _, parts := range [][]*enmime.Part{env.Attachments, env.Inlines, env.OtherParts} {
		for _, p := range parts {
			route(w, p)
		}
	}

	return msg, nil
}

// route sends image parts displayed inline to the inline set and every named
// or attachment-disposition part to the attachment set.
func route(w *partWriter, p *enmime.Part) {
	contentType := strings.ToLower(p.ContentType)
	disposition := strings.ToLower(p.Disposition)
	image := strings.HasPrefix(contentType, "image/")

	switch {
	case image && disposition == "inline":
		w.inline(p.ContentType, bytes.NewReader(p.Content))
	case image && disposition == "" && p.ContentID != "":
		w.inline(p.ContentType, bytes.NewReader(p.Content))
	case p.FileName != "" || disposition == "attachment":
		w.attachment(p.FileName, p.ContentType, bytes.NewReader(p.Content))
	}
}
