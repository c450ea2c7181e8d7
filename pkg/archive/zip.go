package archive

import (
	"errors"

	"github.com/klauspost/compress/zip"
)

func (s *sink) extractZip(archivePath string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if s.cancelled() {
			return nil
		}
		if !f.Mode().IsRegular() {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			s.fail(f.Name, err)
			continue
		}

		err = s.write(f.Name, rc)
		rc.Close()
		if errors.Is(err, errStop) {
			return nil
		}
	}

	return nil
}
