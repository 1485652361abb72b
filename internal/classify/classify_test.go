package classify

import (
	"testing"

	"github.com/lagrafica/mailboard/internal/model"
)

func TestClassify_SenderRules(t *testing.T) {
	tests := []struct {
		name         string
		sender       string
		text         string
		wantScope    model.Scope
		wantAssignee string
	}{
		{
			name:         "tender platform",
			sender:       "plataforma.contractacio@gencat.cat",
			wantScope:    model.ScopeTenders,
			wantAssignee: "montse",
		},
		{
			name:         "state contracting",
			sender:       "mailcontrataciondelestado@contrataciondelsectorpublico.gob.es",
			wantScope:    model.ScopeTenders,
			wantAssignee: "montse",
		},
		{
			name:         "bank notification",
			sender:       "notificaciones-bbva@bbva.com",
			wantScope:    model.ScopeBudgets,
			wantAssignee: "alba",
		},
		{
			name:         "management office domain",
			sender:       "gestor@rovirabergua.com",
			wantScope:    model.ScopeBudgets,
			wantAssignee: "alba",
		},
		{
			name:         "kit digital sender",
			sender:       "noreply.dehu@correo.gob.es",
			wantScope:    model.ScopeKit,
			wantAssignee: "ateixido",
		},
		{
			name:         "municipal design client",
			sender:       "comunicacio@paeria.es",
			wantScope:    model.ScopeDesign,
			wantAssignee: "neus",
		},
		{
			name:         "social account",
			sender:       "imo@lagrafica.com",
			wantScope:    model.ScopeSocial,
			wantAssignee: "alba",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.sender, tc.text)
			if got.Scope != tc.wantScope || got.Assignee != tc.wantAssignee {
				t.Errorf("Classify(%q, %q) = (%s, %s); want (%s, %s)",
					tc.sender, tc.text, got.Scope, got.Assignee,
					tc.wantScope, tc.wantAssignee)
			}
		})
	}
}

func TestClassify_KeywordRules(t *testing.T) {
	tests := []struct {
		text         string
		wantScope    model.Scope
		wantAssignee string
	}{
		{"necesitamos una web nueva", model.ScopeWeb, "ateixido"},
		{"mejorar el seo de la tienda", model.ScopeWeb, "ateixido"},
		{"nuevo logo para la marca", model.ScopeDesign, "neus"},
		{"un flyer para el evento", model.ScopeDesign, "neus"},
		{"programar un post de instagram", model.ScopeSocial, "alba"},
		{"solicitud kit digital segmento III", model.ScopeKit, "ateixido"},
	}

	for _, tc := range tests {
		got := Classify("someone@example.com", tc.text)
		if got.Scope != tc.wantScope || got.Assignee != tc.wantAssignee {
			t.Errorf("Classify(%q) = (%s, %s); want (%s, %s)",
				tc.text, got.Scope, got.Assignee, tc.wantScope, tc.wantAssignee)
		}
	}
}

// A tender-platform sender that mentions web work is still a tender:
// sender identity outranks keywords.
func TestClassify_SenderBeatsKeyword(t *testing.T) {
	got := Classify(
		"plataforma.contractacio@gencat.cat",
		"licitación del desarrollo de la web y seo del ayuntamiento",
	)
	if got.Scope != model.ScopeTenders {
		t.Fatalf("scope = %s; want %s", got.Scope, model.ScopeTenders)
	}
	if got.Assignee != "montse" {
		t.Fatalf("assignee = %s; want montse", got.Assignee)
	}
}

func TestClassify_Default(t *testing.T) {
	got := Classify("stranger@nowhere.example", "sin palabras clave")
	if got.Scope != model.ScopeBudgets || got.Assignee != "montse" {
		t.Fatalf("default = (%s, %s); want (budgets, montse)", got.Scope, got.Assignee)
	}
	if got.AutoCreateEligible() {
		t.Fatal("default match must not be auto-create eligible")
	}
}

func TestAutoCreateEligibility(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		text   string
		want   bool
	}{
		{"tender sender", "norespongueu@enotum.cat", "", true},
		{"budgets sender", "bbva@comunica.bbva.com", "", true},
		{"kit sender classifies but never creates", "noreply.dehu@correo.gob.es", "", false},
		{"kit keyword classifies but never creates", "x@example.com", "kit digital bono", false},
		{"web keyword", "x@example.com", "nueva web", false},
		{"design sender", "a@paeria.es", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.sender, tc.text)
			if got.AutoCreateEligible() != tc.want {
				t.Errorf("AutoCreateEligible() = %v; want %v (kind %d)",
					got.AutoCreateEligible(), tc.want, got.Kind)
			}
		})
	}
}

// The match kind reports how the rule actually matched: a kit sender
// is a sender match, a kit keyword from an unknown sender a keyword
// match.
func TestClassify_KitProvenance(t *testing.T) {
	bySender := Classify("noreply.dehu@correo.gob.es", "")
	if bySender.Scope != model.ScopeKit || bySender.Kind != KindSender {
		t.Errorf("sender match = (%s, kind %d); want (kit, KindSender)",
			bySender.Scope, bySender.Kind)
	}

	byKeyword := Classify("random@example.com", "solicitud kit digital")
	if byKeyword.Scope != model.ScopeKit || byKeyword.Kind != KindKeyword {
		t.Errorf("keyword match = (%s, kind %d); want (kit, KindKeyword)",
			byKeyword.Scope, byKeyword.Kind)
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	got := Classify("Notificaciones-BBVA@BBVA.com", "")
	if got.Scope != model.ScopeBudgets {
		t.Fatalf("scope = %s; want %s", got.Scope, model.ScopeBudgets)
	}
}
