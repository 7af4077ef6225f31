package search

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hyperjump/sitesearch/internal/morph"
)

const (
	boldOpen  = "<b>"
	boldClose = "</b>"
	ellipsis  = " ..."
	separator = " · "
)

var (
	urlPattern     = regexp.MustCompile(`https?://\S+`)
	newlinePattern = regexp.MustCompile(`\s*\n+\s*`)
	spacePattern   = regexp.MustCompile(`[ \t\r\f\v\x{00A0}]+`)
)

// skipped elements contribute no visible text.
var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
}

// block elements break lines.
var block = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true, atom.Section: true,
	atom.Article: true, atom.Header: true, atom.Footer: true, atom.Nav: true, atom.Aside: true,
	atom.Blockquote: true, atom.Pre: true, atom.Hr: true, atom.Dd: true, atom.Dt: true,
	atom.Main: true, atom.Form: true, atom.Figure: true, atom.Figcaption: true,
}

// Title returns the trimmed text of the first <title> element.
func Title(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// SnippetText renders the visible text of an HTML page on one line: entities
// resolved, absolute URLs removed, line breaks collapsed to " · ".
func SnippetText(content string) string {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if skipped[n.DataAtom] {
				return
			}
			if block[n.DataAtom] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	text := urlPattern.ReplaceAllString(b.String(), "")
	text = spacePattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	text = newlinePattern.ReplaceAllString(text, separator)
	return strings.TrimSpace(text)
}

// Highlight wraps every word for which match returns true in <b></b>. Words
// are maximal runs of Cyrillic letters, so hyphenated parts match separately.
func Highlight(text string, match func(word string) bool) string {
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); {
		if !morph.IsWordRune(runes[i]) {
			b.WriteRune(runes[i])
			i++
			continue
		}
		j := i
		for j < len(runes) && morph.IsWordRune(runes[j]) {
			j++
		}
		word := string(runes[i:j])
		if match(word) {
			b.WriteString(boldOpen)
			b.WriteString(word)
			b.WriteString(boldClose)
		} else {
			b.WriteString(word)
		}
		i = j
	}
	return b.String()
}

// Sentences splits highlighted text after '.', '!', '?' or '·' when the next
// sentence starts with an uppercase Cyrillic letter, optionally behind a quote,
// a bold marker or a separator.
func Sentences(text string) []string {
	spans := sentenceSpans(text)
	out := make([]string, 0, len(spans))
	for _, sp := range spans {
		out = append(out, text[sp[0]:sp[1]])
	}
	return out
}

// sentenceSpans returns the byte ranges of the trimmed, non-empty sentences of text.
func sentenceSpans(text string) [][2]int {
	var out [][2]int
	add := func(from, to int) {
		for from < to && asciiSpace(text[from]) {
			from++
		}
		for to > from && asciiSpace(text[to-1]) {
			to--
		}
		if from < to {
			out = append(out, [2]int{from, to})
		}
	}
	startAt := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' && r != '·' {
			continue
		}
		j := i
		for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
			j++
		}
		k := j
		for _, prefix := range []string{boldOpen, "\"", "«", "· "} {
			if strings.HasPrefix(text[k:], prefix) {
				k += len(prefix)
				break
			}
		}
		next, _ := utf8.DecodeRuneInString(text[k:])
		if k < len(text) && isUpperCyrillic(next) {
			add(startAt, j)
			startAt = j
		}
	}
	add(startAt, len(text))
	return out
}

func asciiSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isUpperCyrillic(r rune) bool {
	return (r >= 'А' && r <= 'Я') || r == 'Ё'
}

// FormMatcher returns a highlight predicate accepting the surface forms that
// forms records for any of lemmas. Words are compared case- and ё-insensitively.
func FormMatcher(forms map[string]map[string]struct{}, lemmas map[string]bool) func(word string) bool {
	accepted := make(map[string]bool)
	for lemma, set := range forms {
		if !lemmas[lemma] {
			continue
		}
		for form := range set {
			accepted[form] = true
		}
	}
	return func(word string) bool { return accepted[morph.Normalize(word)] }
}

// Snippet builds a highlighted excerpt of at most length visible characters of
// an HTML page, anchored at the sentence with the most matched words.
func Snippet(content string, match func(word string) bool, length int) string {
	return snippetOf(SnippetText(content), match, length)
}

// snippetOf is Snippet over already extracted visible text.
func snippetOf(text string, match func(word string) bool, length int) string {
	text = Highlight(text, match)
	from, bestCount := -1, -1
	for _, sp := range sentenceSpans(text) {
		if n := strings.Count(text[sp[0]:sp[1]], boldOpen); n > bestCount {
			from, bestCount = sp[0], n
		}
	}
	if from < 0 {
		return ""
	}
	return window(text, from, length)
}

// window cuts at most length visible runes, markers excluded, out of s. The
// anchor is the first marker at or after byte offset from (or from itself when
// there is none). The window starts length/6 visible runes before the anchor and
// runs on past the anchor's sentence; both edges move to whitespace so no word
// or marker is split.
func window(s string, from, length int) string {
	if s == "" || from >= len(s) {
		return ""
	}
	anchorByte := from
	if i := strings.Index(s[from:], boldOpen); i >= 0 {
		anchorByte = from + i
	}
	runes := []rune(s)
	anchor := utf8.RuneCountInString(s[:anchorByte])

	start := anchor
	for margin := length / 6; start > 0 && margin > 0; {
		if m := markerEndingAt(runes, start); m > 0 {
			start -= m
			continue
		}
		start--
		margin--
	}
	for start > 0 && start < anchor && !unicode.IsSpace(runes[start-1]) {
		start++
	}

	visible := 0
	end := start
	lastSpace := -1
	for end < len(runes) && visible < length {
		if m := markerAt(runes, end); m > 0 {
			end += m
			continue
		}
		if unicode.IsSpace(runes[end]) {
			lastSpace = end
		}
		visible++
		end++
	}
	if end < len(runes) && !unicode.IsSpace(runes[end]) && markerAt(runes, end) == 0 && lastSpace > start {
		end = lastSpace
	}

	out := strings.TrimSpace(string(runes[start:end]))
	if strings.Count(out, boldOpen) > strings.Count(out, boldClose) {
		out += boldClose
	}
	return out + ellipsis
}

// markerAt returns the rune length of a bold marker starting at i, or 0.
func markerAt(runes []rune, i int) int {
	if runes[i] != '<' {
		return 0
	}
	for _, m := range []string{boldOpen, boldClose} {
		mr := []rune(m)
		if i+len(mr) <= len(runes) && string(runes[i:i+len(mr)]) == m {
			return len(mr)
		}
	}
	return 0
}

// markerEndingAt returns the rune length of a bold marker ending just before i, or 0.
func markerEndingAt(runes []rune, i int) int {
	if runes[i-1] != '>' {
		return 0
	}
	for _, m := range []string{boldOpen, boldClose} {
		mr := []rune(m)
		if i-len(mr) >= 0 && string(runes[i-len(mr):i]) == m {
			return len(mr)
		}
	}
	return 0
}
