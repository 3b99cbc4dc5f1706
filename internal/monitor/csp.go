package monitor

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// CSP directive names.
const (
	DirectiveDefaultSrc     = "default-src"
	DirectiveScriptSrc      = "script-src"
	DirectiveStyleSrc       = "style-src"
	DirectiveImgSrc         = "img-src"
	DirectiveConnectSrc     = "connect-src"
	DirectiveFontSrc        = "font-src"
	DirectiveObjectSrc      = "object-src"
	DirectiveFrameAncestors = "frame-ancestors"
	DirectiveBaseURI        = "base-uri"
	DirectiveFormAction     = "form-action"
)

// CSPPolicy builds a Content-Security-Policy header value. Directives are
// rendered in a stable order so the header can be compared in tests and
// cached by intermediaries.
type CSPPolicy struct {
	directives map[string][]string
	upgrade    bool
}

// NewCSPPolicy returns an empty policy.
func NewCSPPolicy() *CSPPolicy {
	return &CSPPolicy{directives: make(map[string][]string)}
}

// DefaultCSPPolicy is the policy served with the dashboard: same-origin
// resources only, no plugins, no framing, API calls to apiOrigin.
func DefaultCSPPolicy(apiOrigin string) *CSPPolicy {
	p := NewCSPPolicy().
		Add(DirectiveDefaultSrc, "'self'").
		Add(DirectiveScriptSrc, "'self'").
		Add(DirectiveStyleSrc, "'self'").
		Add(DirectiveImgSrc, "'self'", "data:").
		Add(DirectiveFontSrc, "'self'").
		Add(DirectiveConnectSrc, "'self'").
		Add(DirectiveObjectSrc, "'none'").
		Add(DirectiveFrameAncestors, "'none'").
		Add(DirectiveBaseURI, "'self'").
		Add(DirectiveFormAction, "'self'").
		UpgradeInsecureRequests()

	if apiOrigin != "" {
		p.Add(DirectiveConnectSrc, apiOrigin)
	}
	return p
}

// Add appends sources to directive, skipping duplicates.
func (p *CSPPolicy) Add(directive string, sources ...string) *CSPPolicy {
	existing := p.directives[directive]
	for _, src := range sources {
		if !contains(existing, src) {
			existing = append(existing, src)
		}
	}
	p.directives[directive] = existing
	return p
}

// WithNonce allows inline scripts and styles carrying nonce.
func (p *CSPPolicy) WithNonce(nonce string) *CSPPolicy {
	src := fmt.Sprintf("'nonce-%s'", nonce)
	return p.Add(DirectiveScriptSrc, src).Add(DirectiveStyleSrc, src)
}

// UpgradeInsecureRequests adds the upgrade-insecure-requests directive.
func (p *CSPPolicy) UpgradeInsecureRequests() *CSPPolicy {
	p.upgrade = true
	return p
}

// Sources returns the sources of directive.
func (p *CSPPolicy) Sources(directive string) []string {
	return append([]string(nil), p.directives[directive]...)
}

// String renders the header value.
func (p *CSPPolicy) String() string {
	names := make([]string, 0, len(p.directives))
	for name := range p.directives {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names)+1)
	for _, name := range names {
		parts = append(parts, name+" "+strings.Join(p.directives[name], " "))
	}
	if p.upgrade {
		parts = append(parts, "upgrade-insecure-requests")
	}
	return strings.Join(parts, "; ")
}

// NewNonce returns a random base64 nonce for a single response.
func NewNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("error generating csp nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
