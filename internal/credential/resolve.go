// Package credential resolves per-mailbox login material. Environment
// variables take precedence so deployments can inject credentials
// without touching the keyring; the system keyring is the fallback for
// workstation use.
package credential

import (
	"fmt"
	"os"
	"strings"

	"github.com/lagrafica/mailboard/internal/model"
)

// UserKey returns the keyring entry name for an owner's login name.
func UserKey(ownerID string) string {
	return "imap-user-" + strings.ToLower(ownerID)
}

// PassKey returns the keyring entry name for an owner's password.
func PassKey(ownerID string) string {
	return "imap-pass-" + strings.ToLower(ownerID)
}

// Resolve looks up the username and password for a mailbox owner.
// Environment variables IMAP_USER_<OWNER> / IMAP_PASS_<OWNER> (owner
// uppercased) win; otherwise the keyring entries named by UserKey and
// PassKey are consulted.
func Resolve(ownerID string, imap model.IMAPConfig) (model.Credential, error) {
	suffix := strings.ToUpper(ownerID)

	user := os.Getenv("IMAP_USER_" + suffix)
	pass := os.Getenv("IMAP_PASS_" + suffix)

	if user == "" {
		if v, err := Get(UserKey(ownerID)); err == nil {
			user = v
		}
	}
	if pass == "" {
		if v, err := Get(PassKey(ownerID)); err == nil {
			pass = v
		}
	}

	if user == "" || pass == "" {
		return model.Credential{}, fmt.Errorf(
			"no credentials for owner %q: set IMAP_USER_%s and IMAP_PASS_%s or store them in the keyring",
			ownerID, suffix, suffix,
		)
	}

	return model.Credential{
		OwnerID:  ownerID,
		Username: user,
		Password: pass,
		Host:     imap.Host,
		Port:     imap.Port,
	}, nil
}
