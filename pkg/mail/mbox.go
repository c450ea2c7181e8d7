package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/emersion/go-mbox"
)

// SplitMailbox writes each message of the mbox at path to outputDir as
// message_0001.eml, message_0002.eml, and so on. A read failure after the
// first message ends the split and is returned in the error slice.
func SplitMailbox(ctx context.Context, path, outputDir string) ([]Part, []error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	var (
		parts []Part
		errs  []error
	)

	reader := mbox.NewReader(f)
	for i := 1; ; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		r, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if i == 1 {
				return nil, nil, fmt.Errorf("read mbox: %w", err)
			}
			errs = append(errs, fmt.Errorf("read mbox message %d: %w", i, err))
			break
		}

		name := fmt.Sprintf("message_%04d.eml", i)
		part, err := writePart(outputDir, name, "message/rfc822", r)
		if err != nil {
			errs = append(errs, &PartError{Part: name, Err: err})
			continue
		}
		parts = append(parts, part)
	}

	return parts, errs, nil
}
