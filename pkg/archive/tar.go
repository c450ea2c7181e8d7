package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

type compression int

const (
	compressionNone compression = iota
	compressionGzip
	compressionBzip2
	compressionXz
	compressionZstd
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXz    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
	magicZstd  = []byte{0x28, 0xb5, 0x2f, 0xfd}
	magicUstar = []byte("ustar")
)

const ustarOffset = 257

func sniffCompression(br *bufio.Reader) compression {
	head, _ := br.Peek(6)
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return compressionGzip
	case bytes.HasPrefix(head, magicBzip2):
		return compressionBzip2
	case bytes.HasPrefix(head, magicXz):
		return compressionXz
	case bytes.HasPrefix(head, magicZstd):
		return compressionZstd
	}
	return compressionNone
}

// decompress wraps br in the decoder selected by its magic bytes.
// The returned close function releases decoder resources.
func decompress(br *bufio.Reader) (io.Reader, func(), error) {
	noop := func() {}

	switch sniffCompression(br) {
	case compressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("gzip: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case compressionBzip2:
		return bzip2.NewReader(br), noop, nil
	case compressionXz:
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("xz: %w", err)
		}
		return xr, noop, nil
	case compressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, noop, fmt.Errorf("zstd: %w", err)
		}
		return zr, zr.Close, nil
	}
	return br, noop, nil
}

func isTar(br *bufio.Reader) bool {
	head, err := br.Peek(ustarOffset + len(magicUstar))
	if err != nil {
		return false
	}
	return bytes.Equal(head[ustarOffset:], magicUstar)
}

// extractTar reads a possibly compressed tar. When named is false the path
// carried only a compression suffix: the stream must start with a known
// compression magic, and a decompressed stream that is not a tar is written
// out as a single file.
func (s *sink) extractTar(archivePath string, named bool) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	raw := bufio.NewReader(f)
	if !named && sniffCompression(raw) == compressionNone {
		return fmt.Errorf("%w: %s is not a compressed stream", ErrUnsupported, filepath.Base(archivePath))
	}

	r, release, err := decompress(raw)
	if err != nil {
		return err
	}
	defer release()

	br := bufio.NewReader(r)
	if !named && !isTar(br) {
		return s.writeStream(archivePath, br)
	}

	tr := tar.NewReader(br)
	for {
		if s.cancelled() {
			return nil
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if len(s.result.Files) == 0 && len(s.result.Errors) == 0 {
				return err
			}
			s.fail(archivePath, err)
			return nil
		}

		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		if err := s.write(hdr.Name, tr); errors.Is(err, errStop) {
			return nil
		}
	}
}

func (s *sink) writeStream(archivePath string, r io.Reader) error {
	name := streamName(archivePath)
	if err := s.write(name, r); err != nil && !errors.Is(err, errStop) {
		return err
	}
	if len(s.result.Files) == 0 && len(s.result.Errors) > 0 {
		return s.result.Errors[0]
	}
	return nil
}

// streamName strips the compression suffix: report.txt.gz becomes report.txt.
func streamName(archivePath string) string {
	base := filepath.Base(archivePath)
	lower := strings.ToLower(base)

	for _, suffix := range compressedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}

	if base == "" {
		return "file"
	}
	return base
}
