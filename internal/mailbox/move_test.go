package mailbox

import (
	"errors"
	"testing"
)

func TestPerformMove_CopyThenDeleteThenExpunge(t *testing.T) {
	aliases := Aliases{"Archivados": {"Archivados"}}

	var order []string
	ops := moveOps{
		copyTo: func(target string) error {
			order = append(order, "copy:"+target)
			return nil
		},
		createFolder: func(name string) error {
			order = append(order, "create:"+name)
			return nil
		},
		flagDeleted: func() error {
			order = append(order, "delete")
			return nil
		},
		expunge: func() error {
			order = append(order, "expunge")
			return nil
		},
	}

	target, err := performMove(aliases, "Archivados", ops)
	if err != nil {
		t.Fatalf("performMove: %v", err)
	}
	if target != "Archivados" {
		t.Errorf("target = %q", target)
	}

	want := []string{"copy:Archivados", "delete", "expunge"}
	if len(order) != len(want) {
		t.Fatalf("order = %v; want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v; want %v", order, want)
		}
	}
}

// A failed copy must leave the source message intact: no flag-delete,
// no expunge.
func TestPerformMove_CopyFailureLeavesSource(t *testing.T) {
	aliases := Aliases{"Archivados": {"A", "B"}}

	deleted := false
	expunged := false
	ops := moveOps{
		copyTo:       func(string) error { return errors.New("copy refused") },
		createFolder: func(string) error { return errors.New("create refused") },
		flagDeleted:  func() error { deleted = true; return nil },
		expunge:      func() error { expunged = true; return nil },
	}

	_, err := performMove(aliases, "Archivados", ops)
	if !IsFolderNotFound(err) {
		t.Fatalf("expected FolderNotFound, got %v", err)
	}
	if deleted {
		t.Error("flag-delete ran after a failed copy")
	}
	if expunged {
		t.Error("expunge ran after a failed copy")
	}
}

// A candidate that does not exist yet is created segment by segment and
// the copy retried.
func TestPerformMove_CreatesMissingTarget(t *testing.T) {
	aliases := Aliases{
		"Archivo_Fichas/Correos_Procesados": {"Archivo_Fichas/Correos_Procesados"},
	}

	var created []string
	copyCalls := 0
	ops := moveOps{
		copyTo: func(target string) error {
			copyCalls++
			if copyCalls == 1 {
				return errors.New("no such mailbox")
			}
			return nil
		},
		createFolder: func(name string) error {
			created = append(created, name)
			return nil
		},
		flagDeleted: func() error { return nil },
		expunge:     func() error { return nil },
	}

	target, err := performMove(aliases, "Archivo_Fichas/Correos_Procesados", ops)
	if err != nil {
		t.Fatalf("performMove: %v", err)
	}
	if target != "Archivo_Fichas/Correos_Procesados" {
		t.Errorf("target = %q", target)
	}
	if len(created) != 2 {
		t.Fatalf("created = %v; want parent then leaf", created)
	}
	if created[0] != "Archivo_Fichas" || created[1] != "Archivo_Fichas/Correos_Procesados" {
		t.Errorf("created = %v", created)
	}
}

// Expunge failure after the copy is a protocol error, not a silent
// success: the caller learns the source copy may still exist.
func TestPerformMove_ExpungeFailure(t *testing.T) {
	aliases := Aliases{"Papelera": {"Papelera"}}

	ops := moveOps{
		copyTo:       func(string) error { return nil },
		createFolder: func(string) error { return nil },
		flagDeleted:  func() error { return nil },
		expunge:      func() error { return errors.New("expunge refused") },
	}

	_, err := performMove(aliases, "Papelera", ops)
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if pe.Op != "expunge" {
		t.Errorf("op = %q; want expunge", pe.Op)
	}
}
