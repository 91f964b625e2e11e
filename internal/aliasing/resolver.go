package aliasing

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/correlator-io/roster/internal/canonicalization"
)

type (
	// compiledPattern holds a pre-compiled regex pattern and its canonical template.
	compiledPattern struct {
		kind      string
		regex     *regexp.Regexp
		canonical string
	}

	// Resolver maps dimension name variants to canonical display names.
	// Safe for concurrent use (immutable after construction).
	//
	// Resolution order:
	//  1. Exact alias, compared on canonicalization.DimensionKey (case/whitespace-insensitive)
	//  2. Patterns for the same kind, first match wins
	//  3. Otherwise the input is returned unchanged
	//
	// Pattern syntax:
	//   - {variable} captures one or more characters
	//   - Literal characters match exactly (case-insensitive)
	Resolver struct {
		aliases  map[string]map[string]string
		patterns []compiledPattern
	}
)

// variableRegex matches {name} placeholders in the pattern string.
var variableRegex = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// compilePattern converts a pattern string to a compiled, anchored, case-insensitive regex.
//
// Pattern: "Java {version}" → Regex: (?i)^Java (?P<version>.+)$.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	result := regexp.QuoteMeta(pattern)

	for _, match := range variableRegex.FindAllStringSubmatch(pattern, -1) {
		captureGroup := "(?P<" + match[1] + ">.+)"
		result = strings.Replace(result, regexp.QuoteMeta(match[0]), captureGroup, 1)
	}

	return regexp.Compile("(?i)^" + result + "$")
}

// substituteVariables replaces {var} placeholders in canonical with captured values.
func substituteVariables(canonical string, captures map[string]string) string {
	result := canonical
	for varName, value := range captures {
		result = strings.ReplaceAll(result, "{"+varName+"}", value)
	}

	return result
}

// NewResolver creates a resolver from config.
//
// Aliases or patterns with an empty side are skipped with a warning; so are invalid patterns.
// A nil config yields a passthrough resolver.
func NewResolver(cfg *Config) *Resolver {
	r := &Resolver{
		aliases:  make(map[string]map[string]string),
		patterns: []compiledPattern{},
	}

	if cfg == nil {
		return r
	}

	for kind, aliases := range cfg.DimensionAliases {
		kind = strings.ToLower(strings.TrimSpace(kind))

		for alias, canonical := range aliases {
			key := canonicalization.DimensionKey(alias)
			canonical = canonicalization.NormalizeDimensionName(canonical)

			if key == "" || canonical == "" {
				slog.Warn("Skipping dimension alias with empty side",
					slog.String("kind", kind),
					slog.String("alias", alias))

				continue
			}

			if r.aliases[kind] == nil {
				r.aliases[kind] = make(map[string]string)
			}

			r.aliases[kind][key] = canonical
		}
	}

	for _, dp := range cfg.DimensionPatterns {
		kind := strings.ToLower(strings.TrimSpace(dp.Kind))
		pattern := strings.TrimSpace(dp.Pattern)
		canonical := strings.TrimSpace(dp.Canonical)

		if kind == "" || pattern == "" || canonical == "" {
			slog.Warn("Skipping dimension pattern with empty field",
				slog.String("kind", kind),
				slog.String("pattern", pattern))

			continue
		}

		regex, err := compilePattern(pattern)
		if err != nil {
			slog.Warn("Skipping dimension pattern with invalid regex",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()))

			continue
		}

		r.patterns = append(r.patterns, compiledPattern{kind: kind, regex: regex, canonical: canonical})
	}

	return r
}

// AliasCount returns the number of exact aliases across all kinds.
func (r *Resolver) AliasCount() int {
	if r == nil {
		return 0
	}

	n := 0
	for _, aliases := range r.aliases {
		n += len(aliases)
	}

	return n
}

// PatternCount returns the number of compiled patterns.
func (r *Resolver) PatternCount() int {
	if r == nil {
		return 0
	}

	return len(r.patterns)
}

// Resolve returns the canonical display name for a dimension name of the given kind.
// Names without a matching alias or pattern are returned unchanged.
func (r *Resolver) Resolve(kind, name string) string {
	if canonical, ok := r.Match(kind, name); ok {
		return canonical
	}

	return name
}

// Match reports the canonical name for (kind, name) if an alias or pattern applies.
func (r *Resolver) Match(kind, name string) (string, bool) {
	if r == nil || name == "" {
		return "", false
	}

	kind = strings.ToLower(kind)

	if canonical, ok := r.aliases[kind][canonicalization.DimensionKey(name)]; ok {
		return canonical, true
	}

	cleaned := canonicalization.NormalizeDimensionName(name)

	for _, cp := range r.patterns {
		if cp.kind != kind {
			continue
		}

		match := cp.regex.FindStringSubmatch(cleaned)
		if match == nil {
			continue
		}

		captures := make(map[string]string)

		for i, sub := range cp.regex.SubexpNames() {
			if i > 0 && sub != "" && i < len(match) {
				captures[sub] = match[i]
			}
		}

		return substituteVariables(cp.canonical, captures), true
	}

	return "", false
}
