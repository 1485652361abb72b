// Package sync runs the background polling loop: one goroutine walks
// every enabled mailbox and folder in sequence at a fixed interval and
// hands fetched messages to the pipeline engine.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lagrafica/mailboard/internal/credential"
	"github.com/lagrafica/mailboard/internal/engine"
	"github.com/lagrafica/mailboard/internal/mailbox"
	"github.com/lagrafica/mailboard/internal/model"
	"github.com/lagrafica/mailboard/internal/normalize"
)

// SyncState represents the current state of a mailbox sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the sync state for a single mailbox owner.
type SyncStatus struct {
	Owner    string
	State    SyncState
	LastSync time.Time
	Error    error
}

// fetchTimeout is the maximum time allowed for a single fetch operation.
const fetchTimeout = 30 * time.Second

// Poller orchestrates background polling of the configured mailboxes.
// Mailboxes and folders are walked strictly in sequence; there is no
// concurrent fan-out, so one slow server delays but never overlaps the
// others.
type Poller struct {
	cfg     model.AppConfig
	engine  *engine.Engine
	aliases mailbox.Aliases
	logger  *log.Logger

	// newClient is the connector constructor; swapped in tests.
	newClient func(cred model.Credential) fetcher

	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
	statuses  map[string]*SyncStatus
}

// fetcher is the slice of the connector surface the poller uses.
type fetcher interface {
	Fetch(ctx context.Context, folder string, since time.Time, limit int, headersOnly bool) ([]mailbox.RawMessage, error)
}

// New creates a Poller for the given configuration and engine.
func New(cfg model.AppConfig, eng *engine.Engine, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	aliases := mailbox.NewAliases(cfg.FolderAliases)
	return &Poller{
		cfg:     cfg,
		engine:  eng,
		aliases: aliases,
		logger:  logger.With("component", "poller"),
		newClient: func(cred model.Credential) fetcher {
			return mailbox.NewClient(cred, aliases, logger)
		},
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		statuses:  make(map[string]*SyncStatus),
	}
}

// Start launches the polling goroutine. Calling Start on a running
// poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.run()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshAll triggers an immediate poll of all mailboxes.
func (p *Poller) RefreshAll() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

// GetStatuses returns the current sync status of all polled mailboxes.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	return statuses
}

// run is the polling loop: an initial pass, then one pass per tick or
// manual trigger.
func (p *Poller) run() {
	interval := time.Duration(p.cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = 300 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.pollAll()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.pollAll()
		case <-p.triggerCh:
			p.pollAll()
		}
	}
}

// pollAll walks the configured mailboxes in order. A failing mailbox
// is logged and skipped; it never stops the others from being polled.
func (p *Poller) pollAll() {
	for _, mb := range p.cfg.Mailboxes {
		if !mb.Enabled {
			continue
		}

		p.setStatus(mb.OwnerID, SyncRunning, nil)

		if err := p.pollMailbox(mb); err != nil {
			p.logger.Error("mailbox poll failed", "owner", mb.OwnerID, "error", err)
			p.setStatus(mb.OwnerID, SyncError, err)
			continue
		}

		p.setStatus(mb.OwnerID, SyncIdle, nil)
	}
}

// pollMailbox fetches and evaluates every configured folder of one
// mailbox. Archive-type folders use the wide recency window, the rest
// the narrow one.
func (p *Poller) pollMailbox(mb model.MailboxConfig) error {
	cred, err := credential.Resolve(mb.OwnerID, p.cfg.IMAP)
	if err != nil {
		return err
	}

	client := p.newClient(cred)

	folders := mb.Folders
	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}

	for _, folder := range folders {
		since := p.windowFor(folder)

		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		raws, err := client.Fetch(ctx, folder, since, p.cfg.FetchLimit, false)
		cancel()
		if err != nil {
			// Missing folder dialects are expected across providers.
			if mailbox.IsFolderNotFound(err) {
				p.logger.Debug("folder not found, skipping",
					"owner", mb.OwnerID, "folder", folder)
				continue
			}
			return err
		}

		msgs := make([]*model.Message, 0, len(raws))
		for i := range raws {
			msg, ok := normalize.Message(&raws[i], cred.Username)
			if !ok {
				continue
			}
			msgs = append(msgs, msg)
		}

		ctx, cancel = context.WithTimeout(context.Background(), fetchTimeout)
		stats, err := p.engine.ProcessBatch(ctx, mb.OwnerID, msgs)
		cancel()
		if err != nil {
			return err
		}

		if stats.Evaluated > 0 {
			p.logger.Info("folder evaluated",
				"owner", mb.OwnerID, "folder", folder,
				"evaluated", stats.Evaluated,
				"skipped", stats.Skipped,
				"created", stats.Created)
		}
	}

	return nil
}

// windowFor returns the search cutoff for a folder: archive folders
// look back further because moves land there long after delivery.
func (p *Poller) windowFor(folder string) time.Time {
	days := p.cfg.InboxWindowDays
	if mailbox.IsArchiveFolder(folder) {
		days = p.cfg.ArchiveWindowDays
	}
	if days <= 0 {
		return time.Time{}
	}
	return time.Now().AddDate(0, 0, -days)
}

// setStatus updates the sync status for a mailbox owner.
func (p *Poller) setStatus(owner string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[owner]
	if !ok {
		status = &SyncStatus{Owner: owner}
		p.statuses[owner] = status
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}
