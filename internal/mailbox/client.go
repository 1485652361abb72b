package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/charset"

	"github.com/lagrafica/mailboard/internal/model"
)

// dialTimeout bounds connection establishment so one unresponsive
// server cannot stall a whole polling cycle.
const dialTimeout = 30 * time.Second

// RawMessage is one fetched message before normalization: the
// protocol identifier and flags plus either the full RFC 822 blob or,
// in headers-only mode, the envelope and body structure.
type RawMessage struct {
	UID           uint32
	Flags         []string
	Raw           []byte
	Envelope      *imap.Envelope
	BodyStructure imap.BodyStructure
}

// Client performs all IMAP operations for a single mailbox. Every
// operation opens its own session and releases it on every exit path;
// no connection is pooled or reused across operations.
type Client struct {
	cred    model.Credential
	aliases Aliases
	logger  *log.Logger

	mu       sync.Mutex
	resolved map[string]string // logical -> physical, remembered per Client
}

// NewClient creates a connector for one mailbox credential.
func NewClient(cred model.Credential, aliases Aliases, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cred:     cred,
		aliases:  aliases,
		logger:   logger.With("owner", cred.OwnerID),
		resolved: make(map[string]string),
	}
}

// Connect opens a TLS session and authenticates. Every read and write
// on the session carries a rolling deadline bounded by ctx, so no
// command wait can outlive the operation. The caller is responsible
// for calling Logout/Close on the returned client.
func (c *Client) Connect(ctx context.Context) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.cred.Host, c.cred.Port)

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: dialTimeout},
		Config:    &tls.Config{ServerName: c.cred.Host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &NetworkError{Addr: addr, Err: err}
	}

	client := imapclient.New(newDeadlineConn(ctx, conn, ioTimeout), &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: charset.Reader},
	})

	if err := client.Login(c.cred.Username, c.cred.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, &AuthError{
			Owner: c.cred.OwnerID,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", c.cred.Username, err,
			),
		}
	}

	return client, nil
}

// ValidateConnection verifies credentials by connecting,
// authenticating and selecting INBOX. Returns the username on success.
func (c *Client) ValidateConnection(ctx context.Context) (string, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating mailbox connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting INBOX: %w", err)
	}

	return c.cred.Username, nil
}

// resolveAndSelect resolves a logical folder name against the alias
// table and selects it on the given session. A remembered resolution
// is retried first; the winning candidate is remembered for this
// Client.
func (c *Client) resolveAndSelect(client *imapclient.Client, logical string) (string, error) {
	sel := func(name string) error {
		_, err := client.Select(name, nil).Wait()
		return err
	}

	c.mu.Lock()
	known, ok := c.resolved[logical]
	c.mu.Unlock()

	if ok {
		if err := sel(known); err == nil {
			return known, nil
		}
	}

	physical, err := c.aliases.Resolve(logical, sel)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.resolved[logical] = physical
	c.mu.Unlock()

	return physical, nil
}

// Fetch retrieves the most recent messages in a folder, newest first,
// in a single batched round-trip. With since non-zero only messages
// newer than it are searched; limit caps the result set by identifier
// recency. In headers-only mode no body sections are fetched.
func (c *Client) Fetch(
	ctx context.Context,
	folder string,
	since time.Time,
	limit int,
	headersOnly bool,
) ([]RawMessage, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := c.resolveAndSelect(client, folder); err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	if !since.IsZero() {
		criteria.Since = since
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, &ProtocolError{Op: "search", Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Keep the most recent ones; UIDs ascend with delivery order.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		Flags:    true,
		UID:      true,
	}
	var bodySection *imap.FetchItemBodySection
	if headersOnly {
		fetchOpts.BodyStructure = &imap.FetchItemBodyStructure{}
	} else {
		bodySection = &imap.FetchItemBodySection{Peek: true}
		fetchOpts.BodySection = []*imap.FetchItemBodySection{bodySection}
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			// One bad message never fails the batch.
			continue
		}

		raw := RawMessage{
			UID:           uint32(buf.UID),
			Flags:         flagStrings(buf.Flags),
			Envelope:      buf.Envelope,
			BodyStructure: buf.BodyStructure,
		}
		if bodySection != nil {
			raw.Raw = buf.FindBodySection(bodySection)
		}
		messages = append(messages, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, &ProtocolError{Op: "fetch", Err: err}
	}

	// Newest first.
	sort.Slice(messages, func(i, j int) bool {
		return messages[i].UID > messages[j].UID
	})

	return messages, nil
}

// FetchOne retrieves the full body of a single message by UID.
func (c *Client) FetchOne(
	ctx context.Context, folder string, uid uint32,
) (*RawMessage, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := c.resolveAndSelect(client, folder); err != nil {
		return nil, err
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &ProtocolError{
			Op:  "fetch",
			Err: fmt.Errorf("message UID %d not found in %s", uid, folder),
		}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &ProtocolError{Op: "fetch", Err: err}
	}

	raw := &RawMessage{
		UID:           uint32(buf.UID),
		Flags:         flagStrings(buf.Flags),
		Envelope:      buf.Envelope,
		BodyStructure: buf.BodyStructure,
		Raw:           buf.FindBodySection(bodySection),
	}

	if err := fetchCmd.Close(); err != nil {
		return raw, &ProtocolError{Op: "fetch", Err: err}
	}

	return raw, nil
}

// Move copies a message to the resolved target folder, flags the
// source copy deleted and expunges it. The target is resolved through
// the alias-candidate mechanism; candidates missing on the server are
// created segment by segment before the copy is retried. Delete and
// expunge only fire after a successful copy, so a failed move leaves
// the source message intact.
func (c *Client) Move(
	ctx context.Context,
	uid uint32,
	sourceFolder, targetLogical string,
) (string, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := c.resolveAndSelect(client, sourceFolder); err != nil {
		return "", err
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	resolved, err := performMove(c.aliases, targetLogical, moveOps{
		copyTo: func(target string) error {
			_, err := client.Copy(uidSet, target).Wait()
			return err
		},
		createFolder: func(name string) error {
			return createTolerant(client, name)
		},
		flagDeleted: func() error {
			return client.Store(uidSet, &imap.StoreFlags{
				Op:     imap.StoreFlagsAdd,
				Silent: true,
				Flags:  []imap.Flag{imap.FlagDeleted},
			}, nil).Close()
		},
		expunge: func() error {
			return client.Expunge().Close()
		},
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("message moved",
		"uid", uid, "from", sourceFolder, "to", resolved)
	return resolved, nil
}

// EmptyFolder flags every message in the folder deleted and expunges.
// Returns the number of messages removed. A folder that does not
// resolve is treated as already empty.
func (c *Client) EmptyFolder(ctx context.Context, folder string) (int, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := c.resolveAndSelect(client, folder); err != nil {
		if IsFolderNotFound(err) {
			return 0, nil
		}
		return 0, err
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return 0, &ProtocolError{Op: "search", Err: err}
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return 0, nil
	}

	uidSet := imap.UIDSetNum(uids...)
	err = client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagDeleted},
	}, nil).Close()
	if err != nil {
		return 0, &ProtocolError{Op: "store", Err: err}
	}

	if err := client.Expunge().Close(); err != nil {
		return 0, &ProtocolError{Op: "expunge", Err: err}
	}

	return len(uids), nil
}

// appendToFolder uploads a raw message copy into the resolved logical
// folder, creating it if needed. Used for the best-effort sent copy.
func (c *Client) appendToFolder(ctx context.Context, logical string, raw []byte) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	target, err := c.resolveAndSelect(client, logical)
	if err != nil {
		if !IsFolderNotFound(err) {
			return err
		}
		// No candidate exists yet; create the first one.
		target = c.aliases.Candidates(logical)[0]
		if createErr := createTolerant(client, target); createErr != nil {
			return createErr
		}
	}

	cmd := client.Append(target, int64(len(raw)), &imap.AppendOptions{
		Time: time.Now(),
	})
	if _, err := cmd.Write(raw); err != nil {
		_ = cmd.Close()
		return fmt.Errorf("append write: %w", err)
	}
	if err := cmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}
	if _, err := cmd.Wait(); err != nil {
		return fmt.Errorf("append wait: %w", err)
	}

	return nil
}

// createTolerant creates a mailbox, treating "already exists" as
// success.
func createTolerant(client *imapclient.Client, name string) error {
	err := client.Create(name, nil).Wait()
	if err == nil {
		return nil
	}

	var respErr *imap.Error
	if errors.As(err, &respErr) && respErr.Code == imap.ResponseCodeAlreadyExists {
		return nil
	}
	return err
}

// flagStrings converts protocol flags to plain strings for the
// canonical record.
func flagStrings(flags []imap.Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f))
	}
	return out
}
