// Package normalize turns raw protocol messages into canonical
// records: decoded headers, plain-text bodies and attachment metadata.
package normalize

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/lagrafica/mailboard/internal/mailbox"
	"github.com/lagrafica/mailboard/internal/model"
)

// wordDecoder decodes RFC 2047 encoded words using the declared
// charset, backed by go-message's charset table.
var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// DecodeHeader decodes an encoded-word header value. On any decode
// failure (unsupported charset, malformed word) the literal text is
// returned unchanged rather than an error.
func DecodeHeader(s string) string {
	if s == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// Message converts one fetched message into the canonical record. The
// second return is false when the message cannot be parsed at all;
// such messages are dropped from the output set, never surfaced as a
// batch error.
func Message(raw *mailbox.RawMessage, recipient string) (*model.Message, bool) {
	if raw == nil {
		return nil, false
	}

	msg := &model.Message{
		UID:         raw.UID,
		To:          recipient,
		Flags:       raw.Flags,
		Read:        hasFlag(raw.Flags, string(imap.FlagSeen)),
		Attachments: []model.Attachment{},
	}

	if raw.Envelope != nil {
		msg.MessageID = raw.Envelope.MessageID
		msg.Subject = DecodeHeader(raw.Envelope.Subject)
		msg.From = formatAddresses(raw.Envelope.From)
		if !raw.Envelope.Date.IsZero() {
			msg.Date = raw.Envelope.Date.Format(time.RFC1123Z)
		}
	}

	if raw.Raw == nil {
		// Headers-only mode: envelope data plus attachment hints from
		// the body structure; the body stays a placeholder.
		msg.Partial = true
		msg.Attachments = structureAttachments(raw.BodyStructure)
		return msg, true
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw.Raw))
	if err != nil && mr == nil {
		return nil, false
	}
	defer mr.Close()

	// Prefer parsed headers over the envelope when present.
	if v := mr.Header.Get("Subject"); v != "" {
		msg.Subject = DecodeHeader(v)
	}
	if v := mr.Header.Get("From"); v != "" {
		msg.From = DecodeHeader(v)
	}
	if v := mr.Header.Get("Date"); v != "" {
		msg.Date = v
	}
	if v := mr.Header.Get("Message-Id"); v != "" && msg.MessageID == "" {
		msg.MessageID = strings.Trim(v, "<> ")
	}

	text, html, attachments := walkParts(mr)
	msg.Attachments = attachments

	body := text
	if body == "" && html != "" {
		body = StripHTML(html)
	}
	// Single-part plain payloads sometimes carry markup without an
	// HTML content type.
	if looksLikeHTML(body) {
		body = StripHTML(body)
	}
	msg.Body = Truncate(body, model.MaxBodyLength)
	if html != "" {
		msg.HTMLBody = Truncate(html, model.MaxBodyLength)
	}

	return msg, true
}

// Attachments extracts attachment parts, payloads included, from a
// full raw message. Used by the attachment-download operation.
func Attachments(raw []byte) []model.Attachment {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return nil
	}
	defer mr.Close()

	var out []model.Attachment
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) && part != nil {
				// Readable despite the charset; fall through.
			} else {
				break
			}
		}

		h, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		filename, _ := h.Filename()
		contentType, _, _ := h.ContentType()
		payload, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		out = append(out, model.Attachment{
			Filename:    DecodeHeader(filename),
			ContentType: contentType,
			Size:        int64(len(payload)),
			Content:     base64.StdEncoding.EncodeToString(payload),
		})
	}
	return out
}

// walkParts accumulates the plain-text and HTML buffers and the
// attachment metadata across all MIME parts. A malformed part is
// skipped; the walk never aborts the whole message.
func walkParts(mr *mail.Reader) (text, html string, attachments []model.Attachment) {
	attachments = []model.Attachment{}

	var textBuf, htmlBuf strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) && part != nil {
				// Body readable with its original bytes; keep going.
			} else {
				break
			}
		}
		if part == nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			payload, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			switch {
			case strings.HasPrefix(contentType, "text/plain"), contentType == "":
				textBuf.Write(payload)
			case strings.HasPrefix(contentType, "text/html"):
				htmlBuf.Write(payload)
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()

			payload, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}

			attachments = append(attachments, model.Attachment{
				Filename:    DecodeHeader(filename),
				ContentType: contentType,
				Size:        int64(len(payload)),
			})
		}
	}

	return textBuf.String(), htmlBuf.String(), attachments
}

// structureAttachments derives probable attachments from the BODYSTRUCTURE
// response without fetching the body.
func structureAttachments(bs imap.BodyStructure) []model.Attachment {
	out := []model.Attachment{}
	if bs == nil {
		return out
	}

	bs.Walk(func(_ []int, part imap.BodyStructure) bool {
		single, ok := part.(*imap.BodyStructureSinglePart)
		if !ok {
			return true
		}

		disp := single.Disposition()
		if disp == nil || !strings.EqualFold(disp.Value, "attachment") {
			return true
		}

		out = append(out, model.Attachment{
			Filename:    DecodeHeader(single.Filename()),
			ContentType: single.MediaType(),
			Size:        int64(single.Size),
		})
		return true
	})

	return out
}

// formatAddresses renders envelope addresses the way mail clients
// display them: "Name <mailbox@host>", or the bare address.
func formatAddresses(addrs []imap.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		name := DecodeHeader(a.Name)
		if name != "" {
			parts = append(parts, name+" <"+a.Addr()+">")
		} else {
			parts = append(parts, a.Addr())
		}
	}
	return strings.Join(parts, ", ")
}

// hasFlag reports whether the flag set contains the given flag.
func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}

// Truncate bounds s to max bytes without splitting a rune: the cut
// backs up to the nearest rune boundary so the result stays valid
// UTF-8.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
