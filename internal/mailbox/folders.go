package mailbox

import "strings"

// defaultAliases covers the folder-naming dialects seen across
// providers: plain, slash-separated, dot-separated and INBOX-prefixed
// variants, plus the localized names the mail server actually uses.
var defaultAliases = map[string][]string{
	"Archivados": {
		"Archivados",
		"INBOX.Archivados",
		"INBOX/Archivados",
		"Archive",
	},
	"Archivo_Fichas/Correos_Procesados": {
		"Archivo_Fichas/Correos_Procesados",
		"INBOX.Archivo_Fichas.Correos_Procesados",
		"Archivo_Fichas.Correos_Procesados",
	},
	"Enviados": {
		"Enviados",
		"INBOX.Enviados",
		"Sent",
		"INBOX.Sent",
		"Sent Items",
	},
	"Papelera": {
		"Papelera",
		"INBOX.Papelera",
		"Trash",
		"INBOX.Trash",
	},
}

// Aliases maps logical folder names to ordered lists of physical
// candidates. Candidates are tried in listed order; the first that
// selects wins.
type Aliases map[string][]string

// NewAliases merges config-supplied aliases over the built-in table.
// Config entries replace built-in ones wholesale for the same logical
// name.
func NewAliases(overrides map[string][]string) Aliases {
	merged := make(Aliases, len(defaultAliases)+len(overrides))
	for name, cands := range defaultAliases {
		merged[name] = cands
	}
	for name, cands := range overrides {
		if len(cands) > 0 {
			merged[name] = cands
		}
	}
	return merged
}

// Candidates returns the ordered candidate list for a logical name.
// A name with no alias entry is its own sole candidate.
func (a Aliases) Candidates(logical string) []string {
	if cands, ok := a[logical]; ok {
		return cands
	}
	return []string{logical}
}

// Resolve tries each candidate for logical in order against sel and
// returns the first that succeeds. No candidate after the first
// success is attempted. Returns FolderNotFound when every candidate
// fails.
func (a Aliases) Resolve(logical string, sel func(name string) error) (string, error) {
	cands := a.Candidates(logical)

	var lastErr error
	for _, cand := range cands {
		if err := sel(cand); err != nil {
			lastErr = err
			continue
		}
		return cand, nil
	}

	return "", &FolderNotFound{
		Logical:    logical,
		Candidates: cands,
		LastErr:    lastErr,
	}
}

// IsArchiveFolder reports whether a folder name refers to an
// archive-type folder, which is polled with a longer recency window.
func IsArchiveFolder(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "archiv")
}

// pathSegments splits a physical folder name into its hierarchy
// segments so the path can be created one component at a time. Both
// slash and dot separators are honored; an INBOX. prefix is kept
// attached to the first segment.
func pathSegments(name string) []string {
	sep := "/"
	if !strings.Contains(name, "/") && strings.Contains(name, ".") {
		sep = "."
	}

	parts := strings.Split(name, sep)
	if len(parts) > 1 && parts[0] == "INBOX" && sep == "." {
		parts = append([]string{"INBOX." + parts[1]}, parts[2:]...)
	}

	segments := make([]string, 0, len(parts))
	prefix := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if prefix == "" {
			prefix = part
		} else {
			prefix = prefix + sep + part
		}
		segments = append(segments, prefix)
	}
	return segments
}
