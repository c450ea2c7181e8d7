package preprocess_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/JaimeStill/courier/pkg/archive"
	"github.com/JaimeStill/courier/pkg/preprocess"
)

type entry struct {
	name string
	body []byte
}

func text(name, body string) entry {
	return entry{name: name, body: []byte(body)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func zipBytes(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(e.body); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// nestedZip returns a zip nested levels deep around a single leaf.txt.
func nestedZip(t *testing.T, levels int) []byte {
	t.Helper()
	data := zipBytes(t, text("leaf.txt", "innermost leaf"))
	for i := 1; i < levels; i++ {
		data = zipBytes(t, entry{name: fmt.Sprintf("level%d.zip", i), body: data})
	}
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newProcessor(t *testing.T, cfg preprocess.Config) *preprocess.Processor {
	t.Helper()
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = t.TempDir()
	}
	return preprocess.New(cfg, discardLogger())
}

func process(t *testing.T, p *preprocess.Processor, maxDepth int, paths ...string) *preprocess.Result {
	t.Helper()
	res, err := p.ProcessBatch(context.Background(), paths, maxDepth)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	t.Cleanup(func() { res.Cleanup() })
	assertReconciled(t, res)
	return res
}

func assertReconciled(t *testing.T, res *preprocess.Result) {
	t.Helper()
	if res.TotalExtracted != len(res.Documents) {
		t.Errorf("total_extracted = %d, documents = %d", res.TotalExtracted, len(res.Documents))
	}

	hashes := map[string]string{}
	for id, l := range res.Lineage {
		if l.DocumentID != id {
			t.Errorf("lineage key %s holds entry %s", id, l.DocumentID)
		}
		if l.FileHash != nil {
			if other, ok := hashes[*l.FileHash]; ok {
				t.Errorf("entries %s and %s share hash %s", other, id, *l.FileHash)
			}
			hashes[*l.FileHash] = id
		}
		if l.ParentID != nil {
			parent, ok := res.Lineage[*l.ParentID]
			if !ok {
				t.Errorf("entry %s has unknown parent %s", id, *l.ParentID)
				continue
			}
			if parent.ExtractionDepth != l.ExtractionDepth-1 {
				t.Errorf("entry %s at depth %d has parent at depth %d", id, l.ExtractionDepth, parent.ExtractionDepth)
			}
			if !slices.Contains(parent.Children, id) {
				t.Errorf("parent %s does not list child %s", parent.DocumentID, id)
			}
		}
	}
}

func findByName(res *preprocess.Result, name string) *preprocess.Lineage {
	for _, l := range res.Lineage {
		if l.Metadata[preprocess.MetaFileName] == name {
			return l
		}
	}
	return nil
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}

func kinds(errs []preprocess.ErrorEntry) []preprocess.ErrorKind {
	out := make([]preprocess.ErrorKind, len(errs))
	for i, e := range errs {
		out[i] = e.Kind
	}
	return out
}

func TestProcessZipScenario(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bundle.zip", zipBytes(t,
		text("invoice.pdf", "%PDF-1.4 invoice"),
		text("po.pdf", "%PDF-1.4 purchase order"),
	))

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 3, src)

	if got := baseNames(res.Documents); !slices.Equal(got, []string{"invoice.pdf", "po.pdf"}) {
		t.Fatalf("documents = %v", got)
	}
	if res.OriginalCount != 1 || res.TotalExtracted != 2 {
		t.Errorf("original_count = %d, total_extracted = %d", res.OriginalCount, res.TotalExtracted)
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors = %+v", res.Errors)
	}
	if len(res.Lineage) != 3 {
		t.Fatalf("lineage entries = %d, want 3", len(res.Lineage))
	}

	root := findByName(res, "bundle.zip")
	if root == nil || !root.IsRoot() {
		t.Fatalf("root entry = %+v", root)
	}
	if root.ContainerType != preprocess.ContainerArchive {
		t.Errorf("root container_type = %s", root.ContainerType)
	}
	if root.ExtractedPath != src || root.OriginalPath != src {
		t.Errorf("root paths = %s, %s", root.OriginalPath, root.ExtractedPath)
	}

	for i, name := range []string{"invoice.pdf", "po.pdf"} {
		leaf := findByName(res, name)
		if leaf == nil {
			t.Fatalf("no lineage for %s", name)
		}
		if leaf.ParentID == nil || *leaf.ParentID != root.DocumentID {
			t.Errorf("%s parent = %v, want %s", name, leaf.ParentID, root.DocumentID)
		}
		if leaf.ExtractionDepth != 1 {
			t.Errorf("%s depth = %d", name, leaf.ExtractionDepth)
		}
		if leaf.ContainerType != preprocess.ContainerDocument {
			t.Errorf("%s container_type = %s", name, leaf.ContainerType)
		}
		if leaf.OriginalPath != src+"/"+name {
			t.Errorf("%s original_path = %s", name, leaf.OriginalPath)
		}
		if leaf.ExtractedPath != res.Documents[i] {
			t.Errorf("%s extracted_path = %s, want %s", name, leaf.ExtractedPath, res.Documents[i])
		}
		if root.Children[i] != leaf.DocumentID {
			t.Errorf("children[%d] = %s, want %s", i, root.Children[i], leaf.DocumentID)
		}
		if filepath.Dir(leaf.ExtractedPath) != filepath.Join(res.ScratchDir, root.DocumentID) {
			t.Errorf("%s extracted outside its container dir: %s", name, leaf.ExtractedPath)
		}
	}
}

func TestProcessMaxDepthZero(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "outer.zip", nestedZip(t, 3))

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 0, src)

	if !slices.Equal(res.Documents, []string{src}) {
		t.Fatalf("documents = %v, want only the outer archive", res.Documents)
	}
	if len(res.Lineage) != 1 {
		t.Fatalf("lineage entries = %d, want 1", len(res.Lineage))
	}

	root := findByName(res, "outer.zip")
	if root.Metadata[preprocess.MetaNote] != preprocess.NoteMaxDepthReached {
		t.Errorf("note = %v", root.Metadata[preprocess.MetaNote])
	}
	if root.Metadata[preprocess.MetaDetectedType] != string(preprocess.ContainerArchive) {
		t.Errorf("detected_type = %v", root.Metadata[preprocess.MetaDetectedType])
	}
	if root.ContainerType != preprocess.ContainerDocument {
		t.Errorf("container_type = %s", root.ContainerType)
	}
	if len(root.Children) != 0 {
		t.Errorf("children = %v", root.Children)
	}
	if got := kinds(res.Errors); !slices.Equal(got, []preprocess.ErrorKind{preprocess.KindDepthExceeded}) {
		t.Errorf("error kinds = %v", got)
	}

	entries, err := os.ReadDir(res.ScratchDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir has %d entries, want none", len(entries))
	}
}

func TestProcessTerminatesOnDeepNesting(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "deep.zip", nestedZip(t, 25))

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 3, src)

	if len(res.Documents) != 1 {
		t.Fatalf("documents = %v, want one", res.Documents)
	}

	leaf := res.Leaves()[0]
	if leaf.ExtractionDepth != 3 {
		t.Errorf("leaf depth = %d, want 3", leaf.ExtractionDepth)
	}
	if leaf.Metadata[preprocess.MetaNote] != preprocess.NoteMaxDepthReached {
		t.Errorf("leaf note = %v", leaf.Metadata[preprocess.MetaNote])
	}
	if len(res.Lineage) != 4 {
		t.Errorf("lineage entries = %d, want 4", len(res.Lineage))
	}
}

func TestProcessSelfReferentialArchive(t *testing.T) {
	dir := t.TempDir()
	inner := zipBytes(t, text("note.txt", "self"))
	outer := zipBytes(t,
		entry{name: "copy.zip", body: inner},
		entry{name: "again/copy.zip", body: inner},
	)
	src := writeFile(t, dir, "outer.zip", outer)

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 10, src, src)

	if got := baseNames(res.Documents); !slices.Equal(got, []string{"note.txt"}) {
		t.Errorf("documents = %v", got)
	}
	if len(res.Duplicates) != 2 {
		t.Fatalf("duplicates = %+v, want the second copy and the resubmitted outer", res.Duplicates)
	}
	if res.Duplicates[0].DuplicateOf == res.Duplicates[0].Path {
		t.Errorf("duplicate refers to itself: %+v", res.Duplicates[0])
	}
	if res.Duplicates[1].Path != src || res.Duplicates[1].Depth != 0 {
		t.Errorf("batch duplicate = %+v", res.Duplicates[1])
	}
	if res.OriginalCount != 2 {
		t.Errorf("original_count = %d", res.OriginalCount)
	}
}

func TestProcessDedup(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("same bytes"))
	b := writeFile(t, dir, "b.txt", []byte("same bytes"))

	tests := []struct {
		name  string
		paths []string
	}{
		{"same path twice", []string{a, a}},
		{"identical content", []string{a, b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProcessor(t, preprocess.Config{})
			res := process(t, p, 3, tt.paths...)

			if !slices.Equal(res.Documents, []string{a}) {
				t.Errorf("documents = %v", res.Documents)
			}
			if len(res.Lineage) != 1 {
				t.Errorf("lineage entries = %d", len(res.Lineage))
			}
			if len(res.Duplicates) != 1 {
				t.Fatalf("duplicates = %+v", res.Duplicates)
			}
			d := res.Duplicates[0]
			if d.Path != tt.paths[1] || d.DuplicateOf != a {
				t.Errorf("duplicate = %+v", d)
			}
			if len(res.Errors) != 0 {
				t.Errorf("duplicates must not be errors: %+v", res.Errors)
			}
		})
	}
}

func TestLineageReconstruction(t *testing.T) {
	dir := t.TempDir()
	l2 := zipBytes(t, text("c.txt", "depth three"))
	l1 := zipBytes(t, text("b.txt", "depth two"), entry{name: "l2.zip", body: l2})
	root := zipBytes(t, text("a.txt", "depth one"), entry{name: "l1.zip", body: l1})
	src := writeFile(t, dir, "root.zip", root)

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 5, src)

	if got := baseNames(res.Documents); !slices.Equal(got, []string{"a.txt", "b.txt", "c.txt"}) {
		t.Fatalf("documents = %v", got)
	}

	for _, leaf := range res.Leaves() {
		chain := res.Chain(leaf.DocumentID)
		if len(chain.Chain) == 0 {
			t.Fatalf("empty chain for %s", leaf.ExtractedPath)
		}
		if chain.Depth != leaf.ExtractionDepth {
			t.Errorf("%s chain depth = %d, extraction_depth = %d", leaf.ExtractedPath, chain.Depth, leaf.ExtractionDepth)
		}

		first := chain.Chain[0]
		if !first.IsRoot() || first.ExtractionDepth != 0 {
			t.Errorf("chain for %s starts at %+v", leaf.ExtractedPath, first)
		}
		for i, l := range chain.Chain {
			if l.ExtractionDepth != i {
				t.Errorf("chain[%d] depth = %d", i, l.ExtractionDepth)
			}
		}
		if last := chain.Chain[len(chain.Chain)-1]; last.DocumentID != leaf.DocumentID {
			t.Errorf("chain ends at %s, want %s", last.DocumentID, leaf.DocumentID)
		}
	}

	c := findByName(res, "c.txt")
	want := src + "/l1.zip/l2.zip/c.txt"
	if c.OriginalPath != want {
		t.Errorf("original_path = %s, want %s", c.OriginalPath, want)
	}
}

func TestProcessRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	src := writeFile(t, root, "evil.zip", zipBytes(t,
		text("../../evil.txt", "escape"),
		text("safe.txt", "stay"),
	))

	p := newProcessor(t, preprocess.Config{ScratchDir: filepath.Join(root, "scratch")})
	res := process(t, p, 3, src)

	if got := baseNames(res.Documents); !slices.Equal(got, []string{"safe.txt"}) {
		t.Errorf("documents = %v", got)
	}

	rejected := res.ErrorsOfKind(preprocess.KindPathTraversal)
	if len(rejected) != 1 {
		t.Fatalf("errors = %+v, want one path traversal rejection", res.Errors)
	}
	if rejected[0].Depth != 1 || rejected[0].ContainerType != preprocess.ContainerArchive {
		t.Errorf("rejection = %+v", rejected[0])
	}

	err := filepath.WalkDir(filepath.Dir(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Name() == "evil.txt" {
			t.Errorf("escaped entry written to %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestProcessEmailScenario(t *testing.T) {
	tests := []struct {
		name      string
		inline    bool
		documents []string
	}{
		{"attachments only", false, []string{"invoice.pdf"}},
		{"with inline images", true, []string{"invoice.pdf", "inline_0.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writeFile(t, dir, "invoice.eml", []byte(invoiceEML))

			p := newProcessor(t, preprocess.Config{IncludeInlineImages: tt.inline})
			res := process(t, p, 3, src)

			if got := baseNames(res.Documents); !slices.Equal(got, tt.documents) {
				t.Fatalf("documents = %v, want %v", got, tt.documents)
			}

			email := findByName(res, "invoice.eml")
			if email.ContainerType != preprocess.ContainerEmail {
				t.Errorf("container_type = %s", email.ContainerType)
			}
			if email.Metadata["subject"] != "Quarterly invoice" {
				t.Errorf("subject = %v", email.Metadata["subject"])
			}

			inline, ok := email.Metadata[preprocess.MetaInlineImages].([]string)
			if !ok || len(inline) != 1 || filepath.Base(inline[0]) != "inline_0.png" {
				t.Errorf("inline_images = %v", email.Metadata[preprocess.MetaInlineImages])
			}

			pdf := findByName(res, "invoice.pdf")
			if pdf.ParentID == nil || *pdf.ParentID != email.DocumentID || pdf.ExtractionDepth != 1 {
				t.Errorf("attachment lineage = %+v", pdf)
			}
			if len(email.Children) != len(tt.documents) {
				t.Errorf("children = %v", email.Children)
			}
		})
	}
}

func TestProcessPlainPDF(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.pdf")
	writePDF(t, src)

	p := newProcessor(t, preprocess.Config{})
	if got := p.Detect(src); got != preprocess.ContainerDocument {
		t.Errorf("Detect = %s", got)
	}

	res := process(t, p, 3, src)
	if !slices.Equal(res.Documents, []string{src}) {
		t.Errorf("documents = %v", res.Documents)
	}

	leaf := findByName(res, "report.pdf")
	if leaf.ContainerType != preprocess.ContainerDocument {
		t.Errorf("container_type = %s", leaf.ContainerType)
	}

	entries, err := os.ReadDir(res.ScratchDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch dir has %d entries, want none", len(entries))
	}
}

func TestProcessPortfolio(t *testing.T) {
	p := newProcessor(t, preprocess.Config{})

	dir := t.TempDir()
	src := writePortfolio(t, dir, "notes.txt", "embedded notes")

	if got := p.Detect(src); got != preprocess.ContainerPortfolio {
		t.Fatalf("Detect = %s", got)
	}

	res := process(t, p, 3, src)
	if got := baseNames(res.Documents); !slices.Equal(got, []string{"notes.txt"}) {
		t.Fatalf("documents = %v", got)
	}

	carrier := findByName(res, "portfolio.pdf")
	if carrier.ContainerType != preprocess.ContainerPortfolio || len(carrier.Children) != 1 {
		t.Errorf("carrier = %+v", carrier)
	}
}

func TestProcessFailures(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.pdf")
	broken := writeFile(t, dir, "broken.zip", []byte("not a zip archive"))
	note := writeFile(t, dir, "note.txt", []byte("still processed"))

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 3, missing, broken, note)

	if !slices.Equal(res.Documents, []string{broken, note}) {
		t.Errorf("documents = %v", res.Documents)
	}

	want := []preprocess.ErrorKind{preprocess.KindNotFound, preprocess.KindExtractionFailure}
	if got := kinds(res.Errors); !slices.Equal(got, want) {
		t.Fatalf("error kinds = %v, want %v", got, want)
	}
	if res.Errors[0].Path != missing || res.Errors[0].Depth != 0 {
		t.Errorf("not found = %+v", res.Errors[0])
	}
	if res.Errors[1].Path != broken || res.Errors[1].ContainerType != preprocess.ContainerArchive {
		t.Errorf("extraction failure = %+v", res.Errors[1])
	}

	if len(res.Lineage) != 2 {
		t.Errorf("lineage entries = %d, want 2", len(res.Lineage))
	}
	if l := findByName(res, "broken.zip"); l == nil || l.ContainerType != preprocess.ContainerArchive {
		t.Errorf("broken archive lineage = %+v", l)
	}
}

func TestProcessUncompressedStreamKeptAsLeaf(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "notes.txt.gz", []byte("plain text, not gzip"))

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 3, src)

	if !slices.Equal(res.Documents, []string{src}) {
		t.Errorf("documents = %v, want [%s]", res.Documents, src)
	}
	if len(res.Duplicates) != 0 {
		t.Errorf("duplicates = %+v", res.Duplicates)
	}

	want := []preprocess.ErrorKind{preprocess.KindUnsupportedFormat}
	if got := kinds(res.Errors); !slices.Equal(got, want) {
		t.Fatalf("error kinds = %v, want %v", got, want)
	}
	if res.Errors[0].Path != src || res.Errors[0].ContainerType != preprocess.ContainerArchive {
		t.Errorf("error = %+v", res.Errors[0])
	}

	if l := findByName(res, "notes.txt.gz"); l == nil || len(l.Children) != 0 {
		t.Errorf("lineage = %+v", l)
	}
}

func TestProcessUnavailableFormat(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bundle.zip", zipBytes(t, text("a.txt", "a")))

	p := newProcessor(t, preprocess.Config{
		Archive: archive.Config{Disabled: []archive.Format{archive.FormatZip}},
	})
	res := process(t, p, 3, src)

	if len(res.Documents) != 0 || len(res.Errors) != 0 {
		t.Errorf("documents = %v, errors = %+v", res.Documents, res.Errors)
	}

	l := findByName(res, "bundle.zip")
	if l.Metadata[preprocess.MetaDiagnostic] != "zip extraction unavailable" {
		t.Errorf("diagnostic = %v", l.Metadata[preprocess.MetaDiagnostic])
	}
}

func TestProcessInvalidArguments(t *testing.T) {
	p := newProcessor(t, preprocess.Config{})

	if _, err := p.Process(context.Background(), "x.txt", -1); !errors.Is(err, preprocess.ErrInvalidDepth) {
		t.Errorf("negative depth error = %v", err)
	}
	if _, err := p.ProcessBatch(context.Background(), nil, 3); !errors.Is(err, preprocess.ErrNoPaths) {
		t.Errorf("empty batch error = %v", err)
	}
}

func TestProcessCancelled(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", []byte("a"))
	b := writeFile(t, dir, "b.zip", zipBytes(t, text("c.txt", "c")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	expired, stop := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer stop()

	for name, ctx := range map[string]context.Context{"cancelled": ctx, "deadline": expired} {
		t.Run(name, func(t *testing.T) {
			p := newProcessor(t, preprocess.Config{})
			res, err := p.ProcessBatch(ctx, []string{a, b}, 3)
			if err != nil {
				t.Fatalf("ProcessBatch: %v", err)
			}
			defer res.Cleanup()

			if len(res.Documents) != 0 {
				t.Errorf("documents = %v", res.Documents)
			}
			want := []preprocess.ErrorKind{preprocess.KindCancelled, preprocess.KindCancelled}
			if got := kinds(res.Errors); !slices.Equal(got, want) {
				t.Errorf("error kinds = %v", got)
			}
			if res.OriginalCount != 2 {
				t.Errorf("original_count = %d", res.OriginalCount)
			}
		})
	}
}

func TestProcessDeterministicIDs(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bundle.zip", zipBytes(t,
		text("a.txt", "a"),
		entry{name: "inner.zip", body: zipBytes(t, text("b.txt", "b"))},
		text("c.txt", "c"),
	))

	var n atomic.Int64
	p := newProcessor(t, preprocess.Config{
		NewID: func() string { return fmt.Sprintf("doc-%d", n.Add(1)) },
	})
	res := process(t, p, 3, src)

	want := map[string][]string{
		"doc-1": {"doc-2", "doc-3", "doc-5"},
		"doc-3": {"doc-4"},
	}
	for id, children := range want {
		if got := res.Lineage[id].Children; !slices.Equal(got, children) {
			t.Errorf("%s children = %v, want %v", id, got, children)
		}
	}
	if got := baseNames(res.Documents); !slices.Equal(got, []string{"a.txt", "b.txt", "c.txt"}) {
		t.Errorf("documents = %v", got)
	}
}

func TestProcessParallelWorkers(t *testing.T) {
	dir := t.TempDir()

	var entries []entry
	var want []string
	for i := range 8 {
		name := fmt.Sprintf("file%d.txt", i)
		entries = append(entries, text(name, "content "+name))
		want = append(want, name)
	}
	for i := range 3 {
		var inner []entry
		for j := range 3 {
			name := fmt.Sprintf("nested%d_%d.txt", i, j)
			inner = append(inner, text(name, "content "+name))
			want = append(want, name)
		}
		entries = append(entries, entry{name: fmt.Sprintf("inner%d.zip", i), body: zipBytes(t, inner...)})
	}
	src := writeFile(t, dir, "bundle.zip", zipBytes(t, entries...))

	p := newProcessor(t, preprocess.Config{Workers: 4})
	res := process(t, p, 3, src)

	got := baseNames(res.Documents)
	slices.Sort(got)
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Fatalf("documents = %v, want %v", got, want)
	}

	root := findByName(res, "bundle.zip")
	var order []string
	for _, id := range root.Children {
		order = append(order, res.Lineage[id].Metadata[preprocess.MetaEntryName].(string))
	}
	var expected []string
	for _, e := range entries {
		expected = append(expected, e.name)
	}
	if !slices.Equal(order, expected) {
		t.Errorf("children order = %v, want %v", order, expected)
	}
}

func TestResultJSON(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "bundle.zip", zipBytes(t, text("a.txt", "a")))

	p := newProcessor(t, preprocess.Config{})
	res := process(t, p, 3, src)

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"documents", "lineage", "total_extracted", "original_count", "errors", "processing_time_ms"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	if errs, ok := decoded["errors"].([]any); !ok || len(errs) != 0 {
		t.Errorf("errors = %v, want empty array", decoded["errors"])
	}

	root := findByName(res, "bundle.zip")
	lineage := decoded["lineage"].(map[string]any)
	rootJSON := lineage[root.DocumentID].(map[string]any)
	if v, ok := rootJSON["parent_id"]; !ok || v != nil {
		t.Errorf("root parent_id = %v, want null", v)
	}
	if rootJSON["container_type"] != "archive" {
		t.Errorf("container_type = %v", rootJSON["container_type"])
	}
}
