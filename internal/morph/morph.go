// Package morph turns Russian text into dictionary normal forms (lemmas).
package morph

import (
	"sort"
	"strings"
	"unicode"
)

// Form is one grammatical reading of a surface word.
type Form struct {
	Lemma string
	Tags  []string
}

// Dictionary looks up the readings of a normalized (lowercase, ё folded) word.
// An empty result means the word is unknown.
type Dictionary interface {
	Lookup(word string) []Form
}

// functionTags mark readings that are never indexed: conjunctions, prepositions,
// particles, interjections and stop words.
var functionTags = map[string]bool{
	"CONJ": true, "PREP": true, "PRCL": true, "INTJ": true,
	"СОЮЗ": true, "ПРЕДЛ": true, "ЧАСТ": true, "МЕЖД": true,
	TagStop: true,
}

// TagStop marks stop words in dictionaries that do not carry part-of-speech tags.
const TagStop = "STOP"

// Engine extracts lemmas from text using a Dictionary.
type Engine struct {
	dict  Dictionary
	cache *lookupCache
}

// NewEngine creates an engine. cacheSize bounds the lookup cache; zero disables it.
func NewEngine(dict Dictionary, cacheSize int) *Engine {
	return &Engine{dict: dict, cache: newLookupCache(cacheSize)}
}

// Normalize lowercases text and folds ё to е.
func Normalize(text string) string {
	return strings.ReplaceAll(strings.ToLower(text), "ё", "е")
}

// Tokenize normalizes text and splits it on every character that is not a Cyrillic letter а-я.
func Tokenize(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return r < 'а' || r > 'я'
	})
}

// IsWordRune reports whether r can be part of an indexed word.
func IsWordRune(r rune) bool {
	r = unicode.ToLower(r)
	return (r >= 'а' && r <= 'я') || r == 'ё'
}

// NormalForm returns the lemma of a single word, or false when the word is
// unknown or a function word.
func (e *Engine) NormalForm(word string) (string, bool) {
	forms := e.lookup(Normalize(word))
	if len(forms) == 0 {
		return "", false
	}
	for _, f := range forms {
		for _, tag := range f.Tags {
			if functionTags[tag] {
				return "", false
			}
		}
	}
	return forms[0].Lemma, true
}

// Lemmas returns each lemma in text with its number of occurrences.
func (e *Engine) Lemmas(text string) map[string]int {
	counts := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if lemma, ok := e.NormalForm(tok); ok {
			counts[lemma]++
		}
	}
	return counts
}

// LemmaSet returns the distinct lemmas in text, sorted.
func (e *Engine) LemmaSet(text string) []string {
	counts := e.Lemmas(text)
	out := make([]string, 0, len(counts))
	for lemma := range counts {
		out = append(out, lemma)
	}
	sort.Strings(out)
	return out
}

// LemmaForms maps each lemma in text to the set of normalized surface forms it appeared as.
func (e *Engine) LemmaForms(text string) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{})
	for _, tok := range Tokenize(text) {
		lemma, ok := e.NormalForm(tok)
		if !ok {
			continue
		}
		forms, ok := out[lemma]
		if !ok {
			forms = make(map[string]struct{})
			out[lemma] = forms
		}
		forms[tok] = struct{}{}
	}
	return out
}

func (e *Engine) lookup(word string) []Form {
	if word == "" {
		return nil
	}
	if forms, ok := e.cache.Get(word); ok {
		return forms
	}
	forms := e.dict.Lookup(word)
	e.cache.Set(word, forms)
	return forms
}
