package preprocess

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/JaimeStill/courier/pkg/archive"
	"github.com/JaimeStill/courier/pkg/mail"
)

var errPanic = errors.New("extractor panicked")

// child is a file produced by an extractor, in extraction order.
type child struct {
	name string
	path string
}

// expand extracts a container into <scratch>/<document id> and returns the
// nodes for its children. Per-entry failures are recorded on b. A non-nil
// error means nothing could be extracted; a panic inside a third-party parser
// is returned as one.
func (r *run) expand(ctx context.Context, n node, entry *Lineage, b *branch) (nodes []node, err error) {
	defer func() {
		if v := recover(); v != nil {
			nodes = nil
			err = fmt.Errorf("%w: %v", errPanic, v)
		}
	}()

	outputDir := filepath.Join(r.scratch, entry.DocumentID)
	entryPath := func(name string) string {
		if name == "" {
			return n.original
		}
		return n.original + "/" + filepath.ToSlash(name)
	}
	fail := func(name string, kind ContainerType, err error) {
		b.fail(entryPath(name), n.depth+1, classify(err), kind, err)
	}

	var children []child

	switch entry.ContainerType {
	case ContainerArchive:
		children, err = r.expandArchive(ctx, n, entry, outputDir, fail)
	case ContainerEmail:
		children, err = r.expandEmail(ctx, n, entry, outputDir, fail)
	case ContainerPortfolio:
		children, err = r.expandPortfolio(ctx, n, outputDir, fail)
	default:
		return nil, fmt.Errorf("%w: %s", archive.ErrUnsupported, entry.ContainerType)
	}
	if err != nil {
		return nil, err
	}

	parentID := entry.DocumentID
	nodes = make([]node, len(children))
	for i, c := range children {
		nodes[i] = node{
			path:     c.path,
			original: entryPath(c.name),
			entry:    c.name,
			parentID: &parentID,
			depth:    n.depth + 1,
		}
	}
	return nodes, nil
}

func (r *run) expandArchive(ctx context.Context, n node, entry *Lineage, outputDir string, fail func(string, ContainerType, error)) ([]child, error) {
	format := archive.DetectFormat(n.path)
	if !r.p.archive.Available(format) {
		r.p.logger.Warn("archive format unavailable", "path", n.path, "format", format.String())
		entry.Metadata[MetaDiagnostic] = fmt.Sprintf("%s extraction unavailable", format)
		return nil, nil
	}

	res, err := r.p.archive.Extract(ctx, n.path, outputDir)
	if err != nil {
		return nil, err
	}

	for _, e := range res.Errors {
		var ee *archive.EntryError
		if errors.As(e, &ee) {
			fail(ee.Entry, ContainerArchive, ee.Err)
			continue
		}
		fail("", ContainerArchive, e)
	}

	children := make([]child, len(res.Files))
	for i, f := range res.Files {
		children[i] = child{name: f.Name, path: f.Path}
	}
	return children, nil
}

func (r *run) expandEmail(ctx context.Context, n node, entry *Lineage, outputDir string, fail func(string, ContainerType, error)) ([]child, error) {
	msg, err := r.p.mail.Extract(ctx, n.path, outputDir)
	if err != nil {
		return nil, err
	}

	for _, e := range msg.Errors {
		var pe *mail.PartError
		if errors.As(e, &pe) {
			fail(pe.Part, ContainerEmail, pe.Err)
			continue
		}
		fail("", ContainerEmail, e)
	}

	setHeader(entry.Metadata, "subject", msg.Subject)
	setHeader(entry.Metadata, "from", msg.From)
	setHeader(entry.Metadata, "to", msg.To)
	setHeader(entry.Metadata, "cc", msg.Cc)
	setHeader(entry.Metadata, "date", msg.Date)
	setHeader(entry.Metadata, "message_id", msg.MessageID)
	entry.Metadata["body_length"] = len(msg.Body)
	entry.Metadata["attachment_count"] = len(msg.Attachments)

	if len(msg.InlineImages) > 0 {
		inline := make([]string, len(msg.InlineImages))
		for i, img := range msg.InlineImages {
			inline[i] = img.Path
		}
		entry.Metadata[MetaInlineImages] = inline
	}

	children := make([]child, 0, len(msg.Attachments)+len(msg.InlineImages))
	for _, a := range msg.Attachments {
		children = append(children, child{name: a.Name, path: a.Path})
	}
	if r.p.cfg.IncludeInlineImages {
		for _, img := range msg.InlineImages {
			children = append(children, child{name: img.Name, path: img.Path})
		}
	}
	return children, nil
}

func (r *run) expandPortfolio(ctx context.Context, n node, outputDir string, fail func(string, ContainerType, error)) ([]child, error) {
	res, err := r.p.portfolio.Extract(ctx, n.path, outputDir)
	if err != nil {
		return nil, err
	}

	for _, e := range res.Errors {
		fail("", ContainerPortfolio, e)
	}

	children := make([]child, len(res.Files))
	for i, f := range res.Files {
		children[i] = child{name: f.Name, path: f.Path}
	}
	return children, nil
}

func setHeader(metadata map[string]any, key, value string) {
	if value != "" {
		metadata[key] = value
	}
}
