// Package ops is the consolidated invocation surface: every mode takes
// plain arguments and returns a JSON-shaped value, so the CLI and any
// embedding caller share one contract.
package ops

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/lagrafica/mailboard/internal/credential"
	"github.com/lagrafica/mailboard/internal/engine"
	"github.com/lagrafica/mailboard/internal/mailbox"
	"github.com/lagrafica/mailboard/internal/model"
	"github.com/lagrafica/mailboard/internal/normalize"
)

// Service exposes the mailbox operations as invocation modes. The
// engine is optional; when present, fetched messages run through the
// dedup and auto-create step before being returned.
type Service struct {
	cfg     model.AppConfig
	aliases mailbox.Aliases
	engine  *engine.Engine
	logger  *log.Logger
}

// New creates the invocation service.
func New(cfg model.AppConfig, eng *engine.Engine, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		cfg:     cfg,
		aliases: mailbox.NewAliases(cfg.FolderAliases),
		engine:  eng,
		logger:  logger,
	}
}

// Status is the result of an action mode.
type Status struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Folder  string `json:"folder,omitempty"`
	Deleted int    `json:"deleted,omitempty"`
}

// client builds a connector for the given owner.
func (s *Service) client(owner string) (*mailbox.Client, model.Credential, error) {
	cred, err := credential.Resolve(owner, s.cfg.IMAP)
	if err != nil {
		return nil, model.Credential{}, err
	}
	return mailbox.NewClient(cred, s.aliases, s.logger), cred, nil
}

// windowFor returns the search cutoff for a folder.
func (s *Service) windowFor(folder string) (days int) {
	if mailbox.IsArchiveFolder(folder) {
		return s.cfg.ArchiveWindowDays
	}
	return s.cfg.InboxWindowDays
}

// Fetch returns the most recent messages of one folder, newest first.
// A folder no candidate resolves to yields an empty list, never an
// error; callers treat an absent folder dialect as an empty one.
func (s *Service) Fetch(
	ctx context.Context, owner, folder string, headersOnly bool,
) ([]*model.Message, error) {
	client, cred, err := s.client(owner)
	if err != nil {
		return nil, err
	}

	since := sinceDays(s.windowFor(folder))
	raws, err := client.Fetch(ctx, folder, since, s.cfg.FetchLimit, headersOnly)
	if err != nil {
		if mailbox.IsFolderNotFound(err) {
			return []*model.Message{}, nil
		}
		return nil, err
	}

	msgs := make([]*model.Message, 0, len(raws))
	for i := range raws {
		msg, ok := normalize.Message(&raws[i], cred.Username)
		if !ok {
			continue
		}
		msgs = append(msgs, msg)
	}

	if s.engine != nil && !headersOnly {
		if _, err := s.engine.ProcessBatch(ctx, owner, msgs); err != nil {
			// Evaluation failures never hide fetched mail from the caller.
			s.logger.Error("batch evaluation failed", "owner", owner, "error", err)
		}
	}

	return msgs, nil
}

// FetchBody returns a single message with its full body.
func (s *Service) FetchBody(
	ctx context.Context, owner string, uid uint32, folder string,
) (*model.Message, error) {
	client, cred, err := s.client(owner)
	if err != nil {
		return nil, err
	}

	raw, err := client.FetchOne(ctx, folder, uid)
	if err != nil {
		return nil, err
	}

	msg, ok := normalize.Message(raw, cred.Username)
	if !ok {
		return nil, &mailbox.ProtocolError{
			Op:  "fetch",
			Err: errUnparsable(uid),
		}
	}
	return msg, nil
}

// DownloadAttachments returns the attachment parts of one message,
// payloads included as base64.
func (s *Service) DownloadAttachments(
	ctx context.Context, owner string, uid uint32, folder string,
) ([]model.Attachment, error) {
	client, _, err := s.client(owner)
	if err != nil {
		return nil, err
	}

	raw, err := client.FetchOne(ctx, folder, uid)
	if err != nil {
		return nil, err
	}

	return normalize.Attachments(raw.Raw), nil
}

// Move relocates one message into the resolved target folder.
func (s *Service) Move(
	ctx context.Context, owner string, uid uint32, source, target string,
) (Status, error) {
	client, _, err := s.client(owner)
	if err != nil {
		return Status{}, err
	}

	resolved, err := client.Move(ctx, uid, source, target)
	if err != nil {
		return Status{}, err
	}

	return Status{Success: true, Folder: resolved}, nil
}

// Send composes and delivers a message, with a best-effort copy into
// the sent folder.
func (s *Service) Send(
	ctx context.Context, owner, to, subject, body string, attachments []string,
) (Status, error) {
	client, cred, err := s.client(owner)
	if err != nil {
		return Status{}, err
	}

	sender := mailbox.NewSender(cred, s.cfg.SMTP, client)
	if err := sender.Send(ctx, to, subject, body, attachments); err != nil {
		return Status{}, err
	}

	return Status{Success: true, Message: "sent to " + to}, nil
}

// EmptyFolder removes every message from a folder. An absent folder
// counts as already empty.
func (s *Service) EmptyFolder(
	ctx context.Context, owner, folder string,
) (Status, error) {
	client, _, err := s.client(owner)
	if err != nil {
		return Status{}, err
	}

	n, err := client.EmptyFolder(ctx, folder)
	if err != nil {
		return Status{}, err
	}

	return Status{Success: true, Folder: folder, Deleted: n}, nil
}
