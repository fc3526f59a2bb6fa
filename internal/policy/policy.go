// Package policy implements the per-tenant governance engine: size ceilings
// and extension whitelists resolved per sector, checked once optimistically
// at negotiation time and once authoritatively at ingestion time.
package policy

import (
	"fmt"
	"strings"
)

// Strategy is how upload bytes reach the backend.
type Strategy string

const (
	StrategyProxy  Strategy = "proxy"
	StrategyDirect Strategy = "direct"
)

// Built-in defaults applied when a tenant has no override for a sector.
const (
	DefaultMaxSizeProxied = int64(10 << 20) // 10MB
	DefaultMaxSizeDirect  = int64(5 << 30)  // 5GB; real enforcement is provider-side
)

// Rule is the resolved governance rule for one sector. An empty
// AllowedExtensions slice means no extension restriction.
type Rule struct {
	Sector            Sector
	MaxSizeProxied    int64
	MaxSizeDirect     int64
	AllowedExtensions []string
}

// DefaultRule returns the built-in fallback for a sector.
func DefaultRule(s Sector) Rule {
	return Rule{Sector: s, MaxSizeProxied: DefaultMaxSizeProxied, MaxSizeDirect: DefaultMaxSizeDirect}
}

// Violation codes.
const (
	CodeExtensionNotAllowed = "extension_not_allowed"
	CodeSizeProxied         = "size_exceeds_proxied_limit"
	CodeSizeDirect          = "size_exceeds_direct_limit"
)

// Violation reports which governance dimension rejected an upload. It carries
// the failing rule so callers can report the limit verbatim.
type Violation struct {
	Code    string
	Message string
	Rule    Rule
}

func (v *Violation) Error() string { return "policy: " + v.Message }

// IsViolation reports whether err is a governance rejection.
func IsViolation(err error) bool {
	_, ok := err.(*Violation)
	return ok
}

// Engine resolves rules for one tenant. It is built per request from the
// tenant's stored overrides and is safe for concurrent reads.
type Engine struct {
	overrides map[Sector]Rule
}

// NewEngine builds an engine from tenant overrides keyed by sector.
func NewEngine(overrides []Rule) *Engine {
	m := make(map[Sector]Rule, len(overrides))
	for _, r := range overrides {
		if r.MaxSizeProxied <= 0 {
			r.MaxSizeProxied = DefaultMaxSizeProxied
		}
		if r.MaxSizeDirect <= 0 {
			r.MaxSizeDirect = DefaultMaxSizeDirect
		}
		m[r.Sector] = r
	}
	return &Engine{overrides: m}
}

// RuleFor resolves the applicable rule for an extension: tenant override for
// the owning sector, then the tenant's global override, then the built-in
// default.
func (e *Engine) RuleFor(ext string) Rule {
	sector := SectorForExt(ext)
	if r, ok := e.overrides[sector]; ok {
		return r
	}
	if r, ok := e.overrides[SectorGlobal]; ok {
		r.Sector = sector
		return r
	}
	return DefaultRule(sector)
}

// RuleForSector resolves a rule by sector instead of extension, for
// reporting the effective configuration back to callers.
func (e *Engine) RuleForSector(sector Sector) Rule {
	if r, ok := e.overrides[sector]; ok {
		return r
	}
	if r, ok := e.overrides[SectorGlobal]; ok {
		r.Sector = sector
		return r
	}
	return DefaultRule(sector)
}

// CheckIngestion validates a file name and size against the resolved rule for
// the given strategy. Callers run it twice for proxy uploads: once with the
// client-declared values and once with the received size and verified type.
func (e *Engine) CheckIngestion(fileName string, size int64, strategy Strategy) error {
	ext := Ext(fileName)
	rule := e.RuleFor(ext)

	if len(rule.AllowedExtensions) > 0 && !containsFold(rule.AllowedExtensions, ext) {
		return &Violation{
			Code:    CodeExtensionNotAllowed,
			Message: fmt.Sprintf("extension not allowed: %q is not in the %s whitelist", ext, rule.Sector),
			Rule:    rule,
		}
	}
	switch strategy {
	case StrategyProxy:
		if size > rule.MaxSizeProxied {
			return &Violation{
				Code:    CodeSizeProxied,
				Message: fmt.Sprintf("size exceeds proxied limit: %d > %d", size, rule.MaxSizeProxied),
				Rule:    rule,
			}
		}
	case StrategyDirect:
		if size > rule.MaxSizeDirect {
			return &Violation{
				Code:    CodeSizeDirect,
				Message: fmt.Sprintf("size exceeds direct limit: %d > %d", size, rule.MaxSizeDirect),
				Rule:    rule,
			}
		}
	}
	return nil
}

// OverCeiling reports whether a rule's proxied ceiling exceeds the platform
// request-body constant. Such rules are flagged, never silently clamped.
func OverCeiling(r Rule, bodyCeiling int64) bool {
	return bodyCeiling > 0 && r.MaxSizeProxied > bodyCeiling
}

// SplitExtensions parses a stored comma-separated whitelist.
func SplitExtensions(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(p, ".")))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
