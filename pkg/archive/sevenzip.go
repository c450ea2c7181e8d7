package archive

import (
	"errors"

	"github.com/bodgit/sevenzip"
)

func (s *sink) extractSevenZip(archivePath string) error {
	zr, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if s.cancelled() {
			return nil
		}
		if !f.FileInfo().Mode().IsRegular() {
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
