package mail

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/unicode"
)

const (
	substgPrefix   = "__substg1.0_"
	attachPrefix   = "__attach_version1.0_#"
	embeddedObject = "__substg1.0_3701000D"

	maxPropertySize = 64 << 20
)

// MAPI property tags without their type suffix.
const (
	propSubject          = "0037"
	propTransportHeaders = "007D"
	propSenderName       = "0C1A"
	propSenderEmail      = "0C1F"
	propSenderSMTP       = "5D01"
	propDisplayCc        = "0E03"
	propDisplayTo        = "0E04"
	propBody             = "1000"
	propHTML             = "1013"
	propMessageID        = "1035"
	propAttachData       = "3701"
	propAttachFilename   = "3704"
	propAttachLongName   = "3707"
	propAttachMime       = "370E"
	propDisplayName      = "3001"
)

const (
	typeUnicode = "001F"
	typeString8 = "001E"
	typeBinary  = "0102"
)

type property struct {
	typ  string
	data []byte
}

type propertySet map[string]property

func (p propertySet) text(tag string) string {
	prop, ok := p[tag]
	if !ok {
		return ""
	}
	return decodeProperty(prop)
}

type msgAttachment struct {
	props    propertySet
	embedded bool
}

// entrySource yields compound file entries until io.EOF.
type entrySource interface {
	Next() (*mscfb.File, error)
}

// msgEntries holds the property streams of a message and its attachment storages.
type msgEntries struct {
	root        propertySet
	attachments map[string]*msgAttachment
	errs        []error
}

func (x *Extractor) extractMSG(path, outputDir string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := mscfb.New(f)
	if err != nil {
		return nil, fmt.Errorf("parse msg: %w", err)
	}

	entries, err := walkEntries(doc)
	if err != nil {
		return nil, err
	}

	root := entries.root
	headers := root.text(propTransportHeaders)

	msg := &Message{
		Subject:   root.text(propSubject),
		From:      sender(root),
		To:        root.text(propDisplayTo),
		Cc:        root.text(propDisplayCc),
		Date:      headerValue(headers, "Date"),
		MessageID: root.text(propMessageID),
		Body:      root.text(propBody),
		Errors:    entries.errs,
	}
	if msg.MessageID == "" {
		msg.MessageID = headerValue(headers, "Message-ID")
	}
	if strings.TrimSpace(msg.Body) == "" {
		msg.Body = root.text(propHTML)
	}

	w := &partWriter{dir: outputDir, msg: msg}

	keys := make([]string, 0, len(entries.attachments))
	for k := range entries.attachments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		att := entries.attachments[k]
		name := attachmentName(att.props)

		if att.embedded {
			msg.Errors = append(msg.Errors, &PartError{Part: k, Err: ErrEmbeddedMessage})
			continue
		}

		data, ok := att.props[propAttachData]
		if !ok {
			msg.Errors = append(msg.Errors, &PartError{Part: k, Err: errors.New("attachment has no data stream")})
			continue
		}

		w.attachment(name, att.props.text(propAttachMime), bytes.NewReader(data.data))
	}

	return msg, nil
}

// walkEntries collects the root and attachment properties of a message.
// A read error before any entry is returned; after that it is recorded and
// the entries read so far are kept.
func walkEntries(src entrySource) (*msgEntries, error) {
	e := &msgEntries{
		root:        propertySet{},
		attachments: map[string]*msgAttachment{},
	}

	for read := 0; ; read++ {
		entry, err := src.Next()
		if errors.Is(err, io.EOF) {
			return e, nil
		}
		if err != nil {
			if read == 0 {
				return nil, fmt.Errorf("read msg: %w", err)
			}
			e.errs = append(e.errs, &PartError{Part: "directory", Err: err})
			return e, nil
		}
		e.add(entry)
	}
}

func (e *msgEntries) add(entry *mscfb.File) {
	if len(entry.Path) > 0 && strings.HasPrefix(entry.Path[0], attachPrefix) {
		att := e.attachment(entry.Path[0])
		if len(entry.Path) != 1 {
			return
		}
		if entry.Name == embeddedObject {
			att.embedded = true
			return
		}
		e.read(att.props, entry)
		return
	}

	if len(entry.Path) > 0 {
		return
	}
	if strings.HasPrefix(entry.Name, attachPrefix) {
		e.attachment(entry.Name)
		return
	}
	e.read(e.root, entry)
}

func (e *msgEntries) attachment(key string) *msgAttachment {
	att := e.attachments[key]
	if att == nil {
		att = &msgAttachment{props: propertySet{}}
		e.attachments[key] = att
	}
	return att
}

func (e *msgEntries) read(props propertySet, entry *mscfb.File) {
	if entry.FileInfo().IsDir() {
		return
	}
	if err := readProperty(props, entry.Name, entry); err != nil {
		e.errs = append(e.errs, &PartError{Part: entry.Name, Err: err})
	}
}

// readProperty stores a __substg1.0_TTTTYYYY stream keyed by its tag TTTT.
// Streams with other names are ignored.
func readProperty(props propertySet, name string, r io.Reader) error {
	if !strings.HasPrefix(name, substgPrefix) {
		return nil
	}

	id := strings.TrimPrefix(name, substgPrefix)
	if len(id) != 8 {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPropertySize))
	if err != nil {
		return fmt.Errorf("read property %s: %w", id, err)
	}

	props[strings.ToUpper(id[:4])] = property{
		typ:  strings.ToUpper(id[4:]),
		data: data,
	}
	return nil
}

func decodeProperty(p property) string {
	switch p.typ {
	case typeUnicode:
		decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(p.data)
		if err != nil {
			return ""
		}
		return strings.TrimRight(string(decoded), "\x00")
	case typeString8, typeBinary:
		return strings.TrimRight(string(p.data), "\x00")
	}
	return ""
}

func sender(props propertySet) string {
	name := props.text(propSenderName)
	email := props.text(propSenderSMTP)
	if email == "" {
		email = props.text(propSenderEmail)
	}

	switch {
	case name != "" && email != "" && name != email:
		return fmt.Sprintf("%s <%s>", name, email)
	case email != "":
		return email
	}
	return name
}

func attachmentName(props propertySet) string {
	for _, tag := range []string{propAttachLongName, propAttachFilename, propDisplayName} {
		if name := strings.TrimSpace(props.text(tag)); name != "" {
			return name
		}
	}
	return ""
}

// headerValue returns the first value of key in a raw RFC-822 header block,
// joining folded continuation lines.
func headerValue(headers, key string) string {
	if headers == "" {
		return ""
	}

	prefix := strings.ToLower(key) + ":"
	scanner := bufio.NewScanner(strings.NewReader(headers))

	var (
		value strings.Builder
		found bool
	)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if found {
			if line != "" && (line[0] == ' ' || line[0] == '\t') {
				value.WriteString(" ")
				value.WriteString(strings.TrimSpace(line))
				continue
			}
			break
		}
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			found = true
			value.WriteString(strings.TrimSpace(line[len(prefix):]))
		}
	}

	return value.String()
}
