// Package rules compiles a RuleTemplate's RuleConfig into an ItemFilter
// (ordered exclusion predicates) and a set of RenameRules (regex
// substitutions applied before the diff engine's equality comparison).
// Grounded on the teacher's internal/sync.FilterEngine cascade shape,
// replacing its fixed OneDrive-specific layers with the spec's
// enum-driven exclusion entries.
package rules

import (
	"log/slog"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"github.com/chuxijin/coulddrive-sync/internal/model"
)

// compiledExclusion is one ExclusionRule with its regex (if any)
// precompiled and its pattern case-folded up front when the rule is
// case-insensitive.
type compiledExclusion struct {
	rule    model.ExclusionRule
	re      *regexp.Regexp
	pattern string // case-folded when !CaseSensitive
}

// ItemFilter evaluates, in declared order, whether a path should be
// excluded from sync.
type ItemFilter struct {
	exclusions []compiledExclusion
	folder     cases.Caser
	logger     *slog.Logger
}

// NewItemFilter compiles cfg.Exclusions into an ItemFilter. A malformed
// regex entry is logged and skipped rather than aborting compilation —
// the same "skip and log, never fail the whole filter for one bad
// input" posture the teacher's config validation uses.
func NewItemFilter(cfg model.RuleConfig, logger *slog.Logger) *ItemFilter {
	if logger == nil {
		logger = slog.Default()
	}

	f := &ItemFilter{
		folder: cases.Fold(),
		logger: logger,
	}

	for _, rule := range cfg.Exclusions {
		ce := compiledExclusion{rule: rule}

		if rule.Mode == model.ModeRegex {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				logger.Warn("skipping invalid exclusion rule: bad regex",
					slog.String("pattern", rule.Pattern), slog.String("error", err.Error()))
				continue
			}

			ce.re = re
		} else {
			ce.pattern = rule.Pattern
			if !rule.CaseSensitive {
				ce.pattern = f.folder.String(ce.pattern)
			}
		}

		f.exclusions = append(f.exclusions, ce)
	}

	return f
}

// ShouldExclude reports whether item (given its sync-relative path,
// base name, and extension) is excluded by any compiled rule, evaluated
// in declaration order. The first matching rule determines the outcome.
func (f *ItemFilter) ShouldExclude(itemPath string, isDir bool) bool {
	name := path.Base(itemPath)
	ext := strings.TrimPrefix(path.Ext(name), ".")

	for _, ce := range f.exclusions {
		if !itemTypeMatches(ce.rule.ItemType, isDir) {
			continue
		}

		candidate := targetValue(ce.rule.Target, itemPath, name, ext)

		if matchExclusion(ce, candidate, f.folder) {
			return true
		}
	}

	return false
}

func itemTypeMatches(want model.ItemType, isDir bool) bool {
	switch want {
	case model.ItemFile:
		return !isDir
	case model.ItemFolder:
		return isDir
	default: // model.ItemAny and unset
		return true
	}
}

func targetValue(target model.RuleTarget, itemPath, name, ext string) string {
	switch target {
	case model.TargetPath:
		return itemPath
	case model.TargetExtension:
		return ext
	default: // model.TargetName and unset
		return name
	}
}

func matchExclusion(ce compiledExclusion, candidate string, folder cases.Caser) bool {
	if ce.rule.Mode == model.ModeRegex {
		return ce.re.MatchString(candidate)
	}

	if !ce.rule.CaseSensitive {
		candidate = folder.String(candidate)
	}

	switch ce.rule.Mode {
	case model.ModeContains:
		return strings.Contains(candidate, ce.pattern)
	case model.ModeStartsWith:
		return strings.HasPrefix(candidate, ce.pattern)
	case model.ModeEndsWith:
		return strings.HasSuffix(candidate, ce.pattern)
	case model.ModeExact:
		return candidate == ce.pattern
	default:
		return false
	}
}

// RenameRule is one compiled regex-substitute transform. targetScope
// picks whether the regex runs against the item's base name or its full
// relative path; a path-scope rule can rewrite an intermediate directory
// segment, not just the leaf name.
type RenameRule struct {
	re          *regexp.Regexp
	replacement string
	targetScope model.RuleTarget
}

// RenameRules is an ordered list of compiled RenameRule entries.
type RenameRules struct {
	rules []RenameRule
}

// NewRenameRules compiles cfg.Renames, skipping and logging any entry
// whose target_scope is "extension" or whose pattern fails to compile.
// A case-insensitive rule is compiled
// with an inline (?i) flag, since match_regex is the only matcher a
// rename rule has — there is no separate fold-then-compare path the way
// ItemFilter has for its non-regex modes.
func NewRenameRules(cfg model.RuleConfig, logger *slog.Logger) *RenameRules {
	if logger == nil {
		logger = slog.Default()
	}

	rr := &RenameRules{}

	for _, spec := range cfg.Renames {
		if spec.TargetScope == model.TargetExtension {
			logger.Warn("skipping invalid rename rule: extension scope",
				slog.String("pattern", spec.Pattern))
			continue
		}

		pattern := spec.Pattern
		if !spec.CaseSensitive {
			pattern = "(?i)" + pattern
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			logger.Warn("skipping invalid rename rule: bad regex",
				slog.String("pattern", spec.Pattern), slog.String("error", err.Error()))
			continue
		}

		rr.rules = append(rr.rules, RenameRule{re: re, replacement: spec.Replacement, targetScope: spec.TargetScope})
	}

	return rr
}

// Apply runs every compiled rename rule, in order, against fullPath and
// returns the transformed base name. A name-scope rule (the default,
// including an unset target_scope) substitutes within the base name
// only; a path-scope rule substitutes across the whole path, and the
// base name of its result feeds the next rule. This is a planned
// transform used only for the diff engine's equality comparison — it
// never triggers a provider rename call.
func (rr *RenameRules) Apply(fullPath string) string {
	dir := path.Dir(fullPath)
	name := path.Base(fullPath)

	for _, r := range rr.rules {
		if r.targetScope == model.TargetPath {
			full := r.re.ReplaceAllString(path.Join(dir, name), r.replacement)
			dir, name = path.Dir(full), path.Base(full)
			continue
		}

		name = r.re.ReplaceAllString(name, r.replacement)
	}

	return name
}

