package mailbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/lagrafica/mailboard/internal/model"
)

// Sender delivers composed messages for one mailbox over SMTP. The
// default transport is implicit TLS; on failure the fallback port is
// retried with STARTTLS before giving up.
type Sender struct {
	cred   model.Credential
	cfg    model.SMTPConfig
	client *Client // for the best-effort sent-folder append
}

// NewSender creates an outbound sender bound to one credential. The
// optional mailbox client is used to append a copy of each sent
// message into the "Enviados" folder.
func NewSender(cred model.Credential, cfg model.SMTPConfig, client *Client) *Sender {
	return &Sender{cred: cred, cfg: cfg, client: client}
}

// Send composes and delivers a message, optionally with file
// attachments. Both transports failing yields a DeliveryError carrying
// both reasons. After a successful delivery a copy is appended to the
// sent folder; append failure is non-fatal.
func (s *Sender) Send(
	ctx context.Context,
	to, subject, body string,
	attachmentPaths []string,
) error {
	raw, err := composeMessage(s.cred.Username, to, subject, body, attachmentPaths)
	if err != nil {
		return fmt.Errorf("composing message: %w", err)
	}

	primaryErr := s.deliver(s.cfg.Port, false, to, raw)
	if primaryErr != nil {
		fallbackErr := s.deliver(s.cfg.FallbackPort, true, to, raw)
		if fallbackErr != nil {
			return &DeliveryError{Primary: primaryErr, Fallback: fallbackErr}
		}
	}

	if s.client != nil {
		if err := s.client.appendToFolder(ctx, "Enviados", raw); err != nil {
			s.client.logger.Warn("sent-folder append failed", "err", err)
		}
	}

	return nil
}

// deliver performs one SMTP transaction on the given port, with
// implicit TLS or STARTTLS negotiation.
func (s *Sender) deliver(port string, startTLS bool, to string, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, port)
	tlsConfig := &tls.Config{ServerName: s.cfg.Host}

	var (
		client *smtp.Client
		err    error
	)
	if startTLS {
		client, err = smtp.DialStartTLS(addr, tlsConfig)
	} else {
		client, err = smtp.DialTLS(addr, tlsConfig)
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer client.Close()

	auth := sasl.NewPlainClient("", s.cred.Username, s.cred.Password)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP auth: %w", err)
	}

	if err := client.SendMail(s.cred.Username, []string{to}, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("sending to %s: %w", to, err)
	}

	return client.Quit()
}

// composeMessage builds the full RFC 822 message, multipart when
// attachments are present.
func composeMessage(
	from, to, subject, body string,
	attachmentPaths []string,
) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)

	if len(attachmentPaths) == 0 {
		var th mail.InlineHeader
		th.Set("Content-Type", "text/plain; charset=utf-8")
		w, err := mail.CreateSingleInlineWriter(&buf, headerWithInline(h, th))
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, body); err != nil {
			w.Close()
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	var th mail.InlineHeader
	th.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := iw.CreatePart(th)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		pw.Close()
		return nil, err
	}
	pw.Close()
	if err := iw.Close(); err != nil {
		return nil, err
	}

	for _, path := range attachmentPaths {
		if err := attachFile(mw, path); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", path, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// attachFile streams one file into the message as an attachment part.
func attachFile(mw *mail.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var ah mail.AttachmentHeader
	ah.Set("Content-Type", contentType)
	ah.SetFilename(name)

	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return err
	}
	if _, err := io.Copy(aw, f); err != nil {
		aw.Close()
		return err
	}
	return aw.Close()
}

// headerWithInline merges the inline part header fields into the
// top-level header for single-part composition.
func headerWithInline(h mail.Header, th mail.InlineHeader) mail.Header {
	fields := th.Fields()
	for fields.Next() {
		h.Set(fields.Key(), fields.Value())
	}
	return h
}
