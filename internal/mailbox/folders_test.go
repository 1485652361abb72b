package mailbox

import (
	"errors"
	"reflect"
	"testing"
)

func TestResolve_FirstSuccessWins(t *testing.T) {
	aliases := Aliases{"Archivados": {"A", "B", "C"}}

	var tried []string
	sel := func(name string) error {
		tried = append(tried, name)
		if name == "C" {
			return nil
		}
		return errors.New("NO [NONEXISTENT] no such mailbox")
	}

	got, err := aliases.Resolve("Archivados", sel)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "C" {
		t.Errorf("resolved = %q; want C", got)
	}
	if !reflect.DeepEqual(tried, []string{"A", "B", "C"}) {
		t.Errorf("tried = %v; want [A B C]", tried)
	}
}

func TestResolve_StopsAfterSuccess(t *testing.T) {
	aliases := Aliases{"Enviados": {"A", "B", "C"}}

	var tried []string
	sel := func(name string) error {
		tried = append(tried, name)
		if name == "B" {
			return nil
		}
		return errors.New("no such mailbox")
	}

	got, err := aliases.Resolve("Enviados", sel)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "B" {
		t.Errorf("resolved = %q; want B", got)
	}
	if len(tried) != 2 {
		t.Errorf("tried %d candidates; want 2 (no attempt past the first success)", len(tried))
	}
}

func TestResolve_AllFail(t *testing.T) {
	aliases := Aliases{"Papelera": {"A", "B"}}

	_, err := aliases.Resolve("Papelera", func(string) error {
		return errors.New("no such mailbox")
	})
	if !IsFolderNotFound(err) {
		t.Fatalf("expected FolderNotFound, got %v", err)
	}

	var nf *FolderNotFound
	if !errors.As(err, &nf) {
		t.Fatal("error is not *FolderNotFound")
	}
	if nf.Logical != "Papelera" || len(nf.Candidates) != 2 {
		t.Errorf("FolderNotFound = %+v", nf)
	}
}

func TestCandidates_UnknownNameIsItsOwnCandidate(t *testing.T) {
	aliases := NewAliases(nil)
	got := aliases.Candidates("Carpeta_Rara")
	if !reflect.DeepEqual(got, []string{"Carpeta_Rara"}) {
		t.Errorf("Candidates = %v; want [Carpeta_Rara]", got)
	}
}

func TestNewAliases_OverridesReplaceDefaults(t *testing.T) {
	aliases := NewAliases(map[string][]string{
		"Archivados": {"Custom"},
	})
	if got := aliases.Candidates("Archivados"); !reflect.DeepEqual(got, []string{"Custom"}) {
		t.Errorf("Candidates = %v; want [Custom]", got)
	}
	// Untouched defaults survive the merge.
	if got := aliases.Candidates("Enviados"); got[0] != "Enviados" {
		t.Errorf("Enviados candidates = %v", got)
	}
}

func TestIsArchiveFolder(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"Archivados", true},
		{"INBOX.Archivados", true},
		{"Archive", true},
		{"Archivo_Fichas/Correos_Procesados", true},
		{"INBOX", false},
		{"Enviados", false},
	}
	for _, tc := range tests {
		if got := IsArchiveFolder(tc.name); got != tc.want {
			t.Errorf("IsArchiveFolder(%q) = %v; want %v", tc.name, got, tc.want)
		}
	}
}

func TestPathSegments(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Archivados", []string{"Archivados"}},
		{"Archivo_Fichas/Correos_Procesados", []string{"Archivo_Fichas", "Archivo_Fichas/Correos_Procesados"}},
		{"INBOX.Archivo_Fichas.Correos_Procesados", []string{"INBOX.Archivo_Fichas", "INBOX.Archivo_Fichas.Correos_Procesados"}},
	}
	for _, tc := range tests {
		if got := pathSegments(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("pathSegments(%q) = %v; want %v", tc.in, got, tc.want)
		}
	}
}
