// Package linkgen expands URL templates into concrete candidate URLs.
//
// Templates carry alphanumeric tags in square brackets, e.g.
// https://cdn.example.com/v[V]/[E]/splash.jpg. Each tag is bound to a list
// of caller-supplied values; expansion is the cartesian product of all value
// lists with every value URL-escaped. The candidate set feeds pkg/probe,
// which searches it for the first live URL.
package linkgen

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// DefaultMaxCombinations caps the cartesian product so a careless template
// cannot explode into millions of candidate URLs
const DefaultMaxCombinations = 20000

var (
	tagRe = regexp.MustCompile(`\[([A-Za-z0-9]+)\]`)
	sepRe = regexp.MustCompile(`[\s_-]+`)
)

// Options controls template expansion
type Options struct {
	// VariantTags lists tags whose values additionally get name-variant
	// expansion (case variants and numbered suffixes)
	VariantTags []string

	// MaxCombinations overrides DefaultMaxCombinations when > 0
	MaxCombinations int
}

// ExtractTags returns the tags of a template in order of appearance
func ExtractTags(template string) []string {
	matches := tagRe.FindAllStringSubmatch(template, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// ValidateTemplate checks that a template carries at least one tag
func ValidateTemplate(template string) error {
	if len(ExtractTags(template)) == 0 {
		return fmt.Errorf("template %q has no tags like [A] or [2]", template)
	}
	return nil
}

// Expand produces all candidate URLs for a template: the cartesian product
// of the per-tag value lists, each value URL-escaped. Returns an error when
// a tag has no values or the combination count exceeds the cap.
func Expand(template string, values map[string][]string, opts Options) ([]string, error) {
	tags := ExtractTags(template)
	if len(tags) == 0 {
		return nil, fmt.Errorf("template %q has no tags", template)
	}

	maxCombinations := opts.MaxCombinations
	if maxCombinations <= 0 {
		maxCombinations = DefaultMaxCombinations
	}

	variantTags := make(map[string]bool, len(opts.VariantTags))
	for _, t := range opts.VariantTags {
		variantTags[t] = true
	}

	lists := make([][]string, 0, len(tags))
	total := 1
	for _, tag := range tags {
		vals := values[tag]
		if len(vals) == 0 {
			return nil, fmt.Errorf("no values supplied for tag [%s]", tag)
		}
		if variantTags[tag] {
			vals = ExpandValueVariants(vals)
		}
		lists = append(lists, vals)

		total *= len(vals)
		if total > maxCombinations {
			return nil, fmt.Errorf("combination count (%d) exceeds the cap of %d, reduce values per tag",
				total, maxCombinations)
		}
	}

	urls := make([]string, 0, total)
	combo := make([]int, len(tags))
	for {
		u := template
		for i, tag := range tags {
			u = strings.ReplaceAll(u, "["+tag+"]", url.PathEscape(lists[i][combo[i]]))
		}
		urls = append(urls, u)

		// Advance the odometer, last tag varies fastest
		i := len(combo) - 1
		for ; i >= 0; i-- {
			combo[i]++
			if combo[i] < len(lists[i]) {
				break
			}
			combo[i] = 0
		}
		if i < 0 {
			break
		}
	}

	return urls, nil
}

// ExpandNameVariants returns case variants of a single name: the original,
// Title Case, lower case, and a CamelCase join of separator-split words.
// Order is preserved and duplicates removed.
func ExpandNameVariants(name string) []string {
	variants := []string{name}

	if title := titleCase(name); title != name {
		variants = append(variants, title)
	}
	if lower := strings.ToLower(name); lower != name {
		variants = append(variants, lower)
	}

	// CamelCase join for multi-word names, e.g. "token wheel" -> "TokenWheel"
	parts := sepRe.Split(strings.ToLower(name), -1)
	if len(parts) > 1 {
		var camel strings.Builder
		for _, p := range parts {
			if p == "" {
				continue
			}
			camel.WriteString(strings.ToUpper(p[:1]))
			camel.WriteString(p[1:])
		}
		variants = append(variants, camel.String())
	}

	return dedupe(variants)
}

// ExpandValueVariants expands each value into its name variants, each with
// numbered suffixes -2 through -6 after the unsuffixed form
func ExpandValueVariants(values []string) []string {
	out := make([]string, 0, len(values)*10)
	for _, v := range values {
		for _, base := range ExpandNameVariants(v) {
			out = append(out, base)
			for i := 2; i <= 6; i++ {
				out = append(out, fmt.Sprintf("%s-%d", base, i))
			}
		}
	}
	return dedupe(out)
}

// ExpandBasenameVariants rewrites the final path segment's stem of each URL
// with each alternate spelling, keeping the extension
// e.g. .../event/overview.jpg + "viewover" -> .../event/viewover.jpg
func ExpandBasenameVariants(urls []string, variants []string) []string {
	if len(variants) == 0 {
		return urls
	}

	out := make([]string, 0, len(urls)*len(variants))
	for _, u := range urls {
		slash := strings.LastIndex(u, "/")
		if slash < 0 || slash == len(u)-1 {
			out = append(out, u)
			continue
		}
		dir, base := u[:slash+1], u[slash+1:]

		ext := ""
		if dot := strings.LastIndex(base, "."); dot >= 0 {
			ext = base[dot:]
		}

		for _, v := range variants {
			out = append(out, dir+v+ext)
		}
	}
	return dedupe(out)
}

// titleCase uppercases the first letter of every word and lowercases the rest
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}

// dedupe removes duplicates preserving first-seen order
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
