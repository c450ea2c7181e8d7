package archive

import (
	"errors"
	"io"

	"github.com/nwaples/rardecode"
)

func (s *sink) extractRar(archivePath string) error {
	rr, err := rardecode.OpenReader(archivePath, "")
	if err != nil {
		return err
	}
	defer rr.Close()

	for {
		if s.cancelled() {
			return nil
		}

		hdr, err := rr.Next()
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

		if hdr.IsDir || !hdr.Mode().IsRegular() {
			continue
		}

		if err := s.write(hdr.Name, rr); errors.Is(err, errStop) {
			return nil
		}
	}
}
