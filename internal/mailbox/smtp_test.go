package mailbox

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emersion/go-message/mail"
)

func TestComposeMessage_SinglePart(t *testing.T) {
	raw, err := composeMessage(
		"info@lagrafica.com", "client@example.com",
		"Presupuesto", "Adjunto el presupuesto.\n", nil,
	)
	if err != nil {
		t.Fatalf("composeMessage: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing composed message: %v", err)
	}
	defer mr.Close()

	if subj, _ := mr.Header.Subject(); subj != "Presupuesto" {
		t.Errorf("subject = %q", subj)
	}
	from, err := mr.Header.AddressList("From")
	if err != nil || len(from) != 1 || from[0].Address != "info@lagrafica.com" {
		t.Errorf("from = %v (%v)", from, err)
	}

	part, err := mr.NextPart()
	if err != nil {
		t.Fatalf("NextPart: %v", err)
	}
	body, _ := io.ReadAll(part.Body)
	if !strings.Contains(string(body), "Adjunto el presupuesto.") {
		t.Errorf("body = %q", body)
	}
}

func TestComposeMessage_WithAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oferta.txt")
	if err := os.WriteFile(path, []byte("contenido adjunto"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	raw, err := composeMessage(
		"info@lagrafica.com", "client@example.com",
		"Oferta", "Ver adjunto.", []string{path},
	)
	if err != nil {
		t.Fatalf("composeMessage: %v", err)
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parsing composed message: %v", err)
	}
	defer mr.Close()

	sawBody := false
	sawAttachment := false
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart: %v", err)
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			payload, _ := io.ReadAll(part.Body)
			if strings.Contains(string(payload), "Ver adjunto.") {
				sawBody = true
			}
		case *mail.AttachmentHeader:
			name, _ := h.Filename()
			if name != "oferta.txt" {
				t.Errorf("attachment filename = %q", name)
			}
			payload, _ := io.ReadAll(part.Body)
			if string(payload) != "contenido adjunto" {
				t.Errorf("attachment payload = %q", payload)
			}
			sawAttachment = true
		}
	}

	if !sawBody {
		t.Error("composed message lost its text body")
	}
	if !sawAttachment {
		t.Error("composed message lost its attachment")
	}
}

func TestComposeMessage_MissingAttachment(t *testing.T) {
	_, err := composeMessage(
		"a@example.com", "b@example.com", "s", "b",
		[]string{filepath.Join(t.TempDir(), "no-such-file.pdf")},
	)
	if err == nil {
		t.Fatal("expected an error for a missing attachment path")
	}
}
