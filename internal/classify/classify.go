// Package classify routes a normalized message to a work category and
// assignee using a single ordered rule table. Sender-identity rules
// are listed before keyword rules so official correspondence that
// happens to contain generic keywords is never misrouted. The same
// table feeds both informational classification and the auto-create
// decision.
package classify

import (
	"strings"

	"github.com/lagrafica/mailboard/internal/model"
)

// RuleKind distinguishes how a rule matches. Only strict sender
// matches authorize automatic work-item creation.
type RuleKind int

const (
	// KindSenderStrict matches the fixed tenders/budgets sender lists.
	KindSenderStrict RuleKind = iota
	// KindSender matches other known sender domains.
	KindSender
	// KindKeyword matches subject/body keywords.
	KindKeyword
	// KindDefault is the fallthrough rule.
	KindDefault
)

// Result is the outcome of classifying one message.
type Result struct {
	Scope    model.Scope
	Assignee string
	Kind     RuleKind
}

// AutoCreateEligible reports whether the matched rule authorizes
// automatic work-item creation: only an exact tenders or budgets
// sender match qualifies. Keyword and default matches classify for
// informational purposes only.
func (r Result) AutoCreateEligible() bool {
	return r.Kind == KindSenderStrict
}

// rule is one entry of the ordered table. Sender fragments match
// against the sender address, keywords against the concatenated
// subject and body text; both are case-insensitive substring matches.
type rule struct {
	senders  []string
	keywords []string
	scope    model.Scope
	assignee string
	kind     RuleKind
}

// rules is evaluated top to bottom; the first match wins. Ordering is
// load-bearing: sender identity dominates keywords.
var rules = []rule{
	// Public-tender platforms and the internal tenders alias.
	{
		senders: []string{
			"admin@lagrafica.com",
			"plataforma.contractacio@gencat.cat",
			"mailcontrataciondelestado@contrataciondelsectorpublico.gob.es",
			"norespongueu@enotum.cat",
		},
		scope:    model.ScopeTenders,
		assignee: "montse",
		kind:     KindSenderStrict,
	},
	// Management, accounting and bank correspondence.
	{
		senders: []string{
			"@rovirabergua.com",
			"notificaciones-bbva@bbva.com",
			"bbva@comunica.bbva.com",
			"bbva.com",
		},
		scope:    model.ScopeBudgets,
		assignee: "alba",
		kind:     KindSenderStrict,
	},
	// Government digitalization program, by sender and by keyword.
	{
		senders: []string{
			"noreply.dehu@correo.gob.es",
			"@acelerapyme.gob.es",
		},
		scope:    model.ScopeKit,
		assignee: "ateixido",
		kind:     KindSender,
	},
	{
		keywords: []string{"kit digital", "kit consulting"},
		scope:    model.ScopeKit,
		assignee: "ateixido",
		kind:     KindKeyword,
	},
	// Municipal design clients, grouped by account owner.
	{
		senders: []string{
			"@paeria.es", "@aralleida.cat",
			"@diputaciolleida.es", "@dipsalut.cat",
		},
		scope:    model.ScopeDesign,
		assignee: "neus",
		kind:     KindSender,
	},
	{
		senders: []string{
			"@ausolan.com", "@juntadeandalucia.es", "@baixebre.cat",
		},
		scope:    model.ScopeDesign,
		assignee: "alba",
		kind:     KindSender,
	},
	{
		senders: []string{
			"@gencat", "@udl.cat", "@concadebarbera.cat",
		},
		scope:    model.ScopeDesign,
		assignee: "montse",
		kind:     KindSender,
	},
	// Social media accounts.
	{
		senders:  []string{"imo@lagrafica.com", "@ibersol.es"},
		scope:    model.ScopeSocial,
		assignee: "alba",
		kind:     KindSender,
	},
	// Generic keyword rules.
	{
		keywords: []string{"web", "página", "seo"},
		scope:    model.ScopeWeb,
		assignee: "ateixido",
		kind:     KindKeyword,
	},
	{
		keywords: []string{"logo", "diseño", "flyer"},
		scope:    model.ScopeDesign,
		assignee: "neus",
		kind:     KindKeyword,
	},
	{
		keywords: []string{"post", "instagram", "redes"},
		scope:    model.ScopeSocial,
		assignee: "alba",
		kind:     KindKeyword,
	},
}

// defaultResult is applied when no rule matches.
var defaultResult = Result{
	Scope:    model.ScopeBudgets,
	Assignee: "montse",
	Kind:     KindDefault,
}

// Classify maps a sender address and the concatenated subject/body
// text to a (scope, assignee) pair. Pure: depends only on its inputs.
func Classify(sender, text string) Result {
	from := strings.ToLower(sender)
	t := strings.ToLower(text)

	for _, r := range rules {
		if matches(r, from, t) {
			return Result{Scope: r.scope, Assignee: r.assignee, Kind: r.kind}
		}
	}
	return defaultResult
}

func matches(r rule, from, text string) bool {
	for _, s := range r.senders {
		if from != "" && strings.Contains(from, s) {
			return true
		}
	}
	for _, k := range r.keywords {
		if text != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
