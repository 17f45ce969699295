package mathrender

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

// delimiters are checked longest first so "$$x$$" is not read as "$" + "$x$" + "$".
var delimiters = [...]struct{ open, close string }{
	{"$$", "$$"},
	{`\[`, `\]`},
	{`\(`, `\)`},
	{"$", "$"},
}

// vecMacro matches the \vec macro name, not longer names such as \vector.
var vecMacro = regexp.MustCompile(`\\vec([^A-Za-z]|$)`)

var typography = strings.NewReplacer(
	"&nbsp;", " ",
	"\u00a0", " ", // no-break space
	"\u2009", " ", // thin space
	"\u202f", " ", // narrow no-break space
	"\u201c", `"`,
	"\u201d", `"`,
	"\u201e", `"`,
	"\u2018", "'",
	"\u2019", "'",
	"\u201a", "'",
	"\u2013", "-",
	"\u2014", "-",
	"\u2015", "-",
	"\u2212", "-",
	"\u2026", "...",
)

// inlineKeyPrefix cannot appear in validated formula text.
const inlineKeyPrefix = "\x00inline\x00"

// Clean normalizes formula text into its cache key form.
//
// Steps: fullwidth forms to narrow, typographic punctuation to ASCII, trim,
// strip one recognized delimiter pair, trim, \vec to \overrightarrow.
// Clean is pure and Clean(Wrap(Clean(f), inline)) == Clean(f).
func Clean(text string) string {
	if text == "" {
		return ""
	}

	s := typography.Replace(width.Narrow.String(text))
	s = strings.TrimSpace(s)
	s = stripDelimiters(s)
	s = strings.TrimSpace(s)
	return rewriteVec(s)
}

// rewriteVec renames every \vec macro. Adjacent macros such as \vec\vec
// share a boundary character, so it repeats until nothing matches.
func rewriteVec(s string) string {
	for vecMacro.MatchString(s) {
		s = vecMacro.ReplaceAllString(s, `\overrightarrow${1}`)
	}
	return s
}

func stripDelimiters(s string) string {
	for _, d := range delimiters {
		if len(s) >= len(d.open)+len(d.close) &&
			strings.HasPrefix(s, d.open) &&
			strings.HasSuffix(s, d.close) {
			return s[len(d.open) : len(s)-len(d.close)]
		}
	}
	return s
}

// Wrap adds engine delimiters to cleaned text: \( \) inline, \[ \] display.
// Blank input yields "".
func Wrap(cleaned string, inline bool) string {
	if strings.TrimSpace(cleaned) == "" {
		return ""
	}
	if inline {
		return `\(` + cleaned + `\)`
	}
	return `\[` + cleaned + `\]`
}

// Unwrap removes the delimiters Wrap added and reports the mode. Text Wrap
// did not produce is returned unchanged as display math.
func Unwrap(source string) (cleaned string, inline bool) {
	switch {
	case len(source) >= 4 && strings.HasPrefix(source, `\(`) && strings.HasSuffix(source, `\)`):
		return source[2 : len(source)-2], true
	case len(source) >= 4 && strings.HasPrefix(source, `\[`) && strings.HasSuffix(source, `\]`):
		return source[2 : len(source)-2], false
	}
	return source, false
}

// Validate rejects cleaned text that no engine could typeset.
func Validate(cleaned string) error {
	if strings.TrimSpace(cleaned) == "" {
		return fmt.Errorf("%w: empty formula", ErrInvalidFormula)
	}
	if strings.ContainsRune(cleaned, 0) {
		return fmt.Errorf("%w: NUL byte in formula", ErrInvalidFormula)
	}

	depth := 0
	escaped := false
	for _, r := range cleaned {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '{':
			depth++
		case r == '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("%w: unbalanced braces", ErrInvalidFormula)
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("%w: unbalanced braces", ErrInvalidFormula)
	}
	return nil
}

// CacheKey derives the render cache key from text that has already been
// through Clean. Display formulas are keyed by the cleaned text itself;
// inline formulas get a separate key because the engine emits different
// markup for them.
func CacheKey(cleaned string, inline bool) string {
	if inline {
		return inlineKeyPrefix + cleaned
	}
	return cleaned
}
