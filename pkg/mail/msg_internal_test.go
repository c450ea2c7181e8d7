package mail

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/richardlehane/mscfb"
)

func TestDecodeProperty(t *testing.T) {
	utf16 := []byte{'H', 0, 'i', 0, 0, 0}

	tests := []struct {
		name string
		prop property
		want string
	}{
		{"unicode", property{typ: typeUnicode, data: utf16}, "Hi"},
		{"string8", property{typ: typeString8, data: []byte("Hi\x00")}, "Hi"},
		{"binary", property{typ: typeBinary, data: []byte("<p>Hi</p>")}, "<p>Hi</p>"},
		{"unknown", property{typ: "0003", data: []byte{1, 0, 0, 0}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := decodeProperty(tt.prop); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeaderValue(t *testing.T) {
	headers := "Received: from mx\r\n\tby relay\r\nDate: Mon, 02 Jan 2006\r\n 15:04:05 -0700\r\nMessage-ID: <a@b>\r\n"

	if got := headerValue(headers, "Date"); got != "Mon, 02 Jan 2006 15:04:05 -0700" {
		t.Errorf("Date = %q", got)
	}
	if got := headerValue(headers, "message-id"); got != "<a@b>" {
		t.Errorf("Message-ID = %q", got)
	}
	if got := headerValue(headers, "Subject"); got != "" {
		t.Errorf("Subject = %q, want empty", got)
	}
}

func TestSender(t *testing.T) {
	utf16 := func(s string) property {
		b := make([]byte, 0, len(s)*2)
		for _, r := range s {
			b = append(b, byte(r), 0)
		}
		return property{typ: typeUnicode, data: b}
	}

	props := propertySet{
		propSenderName: utf16("Alice"),
		propSenderSMTP: utf16("alice@example.com"),
	}
	if got := sender(props); got != "Alice <alice@example.com>" {
		t.Errorf("sender = %q", got)
	}

	if got := sender(propertySet{propSenderName: utf16("Alice")}); got != "Alice" {
		t.Errorf("name only sender = %q", got)
	}
}

func TestAttachmentNamePreference(t *testing.T) {
	props := propertySet{
		propAttachFilename: {typ: typeString8, data: []byte("REPORT~1.PDF")},
		propAttachLongName: {typ: typeString8, data: []byte("quarterly report.pdf")},
	}
	if got := attachmentName(props); got != "quarterly report.pdf" {
		t.Errorf("name = %q", got)
	}

	delete(props, propAttachLongName)
	if got := attachmentName(props); got != "REPORT~1.PDF" {
		t.Errorf("short name = %q", got)
	}
}

type failingSource struct{ err error }

func (s failingSource) Next() (*mscfb.File, error) {
	return nil, s.err
}

func TestWalkEntriesReadError(t *testing.T) {
	errSector := errors.New("sector out of range")

	_, err := walkEntries(failingSource{err: errSector})
	if !errors.Is(err, errSector) {
		t.Errorf("error = %v, want %v", err, errSector)
	}
}

func TestReadProperty(t *testing.T) {
	errTruncated := errors.New("truncated stream")

	tests := []struct {
		name    string
		stream  string
		body    string
		fail    bool
		wantTag string
	}{
		{name: "subject", stream: "__substg1.0_0037001F", body: "H\x00i\x00", wantTag: propSubject},
		{name: "lowercase tag", stream: "__substg1.0_370e001f", body: "t\x00", wantTag: propAttachMime},
		{name: "not a property", stream: "__properties_version1.0", body: "x"},
		{name: "short id", stream: "__substg1.0_0037", body: "x"},
		{name: "read error", stream: "__substg1.0_1000001F", fail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := propertySet{}

			r := iotest.ErrReader(errTruncated)
			if !tt.fail {
				r = strings.NewReader(tt.body)
			}

			err := readProperty(props, tt.stream, r)
			if tt.fail {
				if !errors.Is(err, errTruncated) {
					t.Errorf("error = %v, want %v", err, errTruncated)
				}
				if len(props) != 0 {
					t.Errorf("props = %v, want none", props)
				}
				return
			}
			if err != nil {
				t.Fatalf("readProperty: %v", err)
			}

			if tt.wantTag == "" {
				if len(props) != 0 {
					t.Errorf("props = %v, want none", props)
				}
				return
			}
			prop, ok := props[tt.wantTag]
			if !ok || prop.typ != typeUnicode || string(prop.data) != tt.body {
				t.Errorf("props[%s] = %+v", tt.wantTag, prop)
			}
		})
	}
}
