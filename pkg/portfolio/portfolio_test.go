package portfolio_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/courier/pkg/portfolio"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writePDF writes a single blank page PDF with a valid cross-reference table.
func writePDF(t *testing.T, path string) {
	t.Helper()

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writePortfolio(t *testing.T, dir string, attachments map[string]string) string {
	t.Helper()

	plain := filepath.Join(dir, "plain.pdf")
	writePDF(t, plain)

	var files []string
	for name, content := range attachments {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		files = append(files, path)
	}

	out := filepath.Join(dir, "portfolio.pdf")
	if err := api.AddAttachmentsFile(plain, out, files, false, nil); err != nil {
		t.Fatalf("build portfolio: %v", err)
	}
	return out
}

func TestPlainPDF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.pdf")
	writePDF(t, path)

	x := portfolio.New(0, discardLogger())

	n, err := x.Count(path)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}

	res, err := x.Extract(context.Background(), path, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Files) != 0 || len(res.Errors) != 0 {
		t.Errorf("result = %+v, want empty", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !errors.Is(err, os.ErrNotExist) {
		t.Error("output dir created for a PDF without attachments")
	}
}

func TestExtractPortfolio(t *testing.T) {
	x := portfolio.New(0, discardLogger())

	dir := t.TempDir()
	src := t.TempDir()
	path := writePortfolio(t, src, map[string]string{"notes.txt": "embedded notes"})

	n, err := x.Count(path)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}

	out := filepath.Join(dir, "out")
	res, err := x.Extract(context.Background(), path, out)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Files) != 1 {
		t.Fatalf("files = %+v, want one", res.Files)
	}

	f := res.Files[0]
	if f.Name != "notes.txt" {
		t.Errorf("name = %q", f.Name)
	}
	if filepath.Dir(f.Path) != out {
		t.Errorf("written to %s", f.Path)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "embedded notes" {
		t.Errorf("content = %q", data)
	}
	if f.Size != int64(len(data)) {
		t.Errorf("size = %d, want %d", f.Size, len(data))
	}
}

func TestExtractSizeLimit(t *testing.T) {
	x := portfolio.New(4, discardLogger())

	src := t.TempDir()
	path := writePortfolio(t, src, map[string]string{"big.txt": "more than four bytes"})

	res, err := x.Extract(context.Background(), path, filepath.Join(t.TempDir(), "out"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(res.Files) != 0 {
		t.Errorf("files = %+v, want none", res.Files)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v, want one", res.Errors)
	}
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()
	x := portfolio.New(0, discardLogger())

	if _, err := x.Count(filepath.Join(dir, "missing.pdf")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing Count error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := x.Extract(ctx, filepath.Join(dir, "missing.pdf"), dir); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled error = %v, want context.Canceled", err)
	}
}
