// Package locale normalizes the locale segment of incoming paths
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Resolver decides whether a path needs a locale prefix. It is a pure
// function of (path, config, negotiation hint); it holds only read-only
// configuration after construction.
type Resolver struct {
	supported []string
	def       string
	matcher   language.Matcher
}

func NewResolver(supported []string, def string) *Resolver {
	// The default locale goes first so it wins ties during negotiation.
	ordered := make([]string, 0, len(supported)+1)
	ordered = append(ordered, def)
	for _, s := range supported {
		if s != def {
			ordered = append(ordered, s)
		}
	}
	tags := make([]language.Tag, 0, len(ordered))
	for _, s := range ordered {
		tags = append(tags, language.Make(s))
	}
	return &Resolver{
		supported: ordered,
		def:       def,
		matcher:   language.NewMatcher(tags),
	}
}

func (r *Resolver) Supported() []string {
	return r.supported
}

// Resolve returns the rewritten path and true when the path lacks a valid
// locale prefix. An already-prefixed path returns ("", false), so resolving
// is idempotent. The bare root is never rewritten; the root-redirect state
// of the gate pipeline owns it.
func (r *Resolver) Resolve(path, acceptLanguage string) (string, bool) {
	if path == "" || path == "/" {
		return "", false
	}
	first := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
	for _, s := range r.supported {
		if first == s {
			return "", false
		}
	}
	return "/" + r.negotiate(acceptLanguage) + path, true
}

func (r *Resolver) negotiate(acceptLanguage string) string {
	if acceptLanguage == "" {
		return r.def
	}
	_, index := language.MatchStrings(r.matcher, acceptLanguage)
	if index < 0 || index >= len(r.supported) {
		return r.def
	}
	return r.supported[index]
}
