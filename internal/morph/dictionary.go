package morph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/kljensen/snowball"
)

// FileDictionary is an in-memory dictionary loaded from tab-separated lines:
//
//	form<TAB>lemma<TAB>TAG,TAG
//
// A form may appear on several lines, one per reading. Lines starting with '#' are ignored.
type FileDictionary struct {
	forms map[string][]Form
}

// OpenFileDictionary loads a dictionary file from path.
func OpenFileDictionary(path string) (*FileDictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary: %w", err)
	}
	defer f.Close()
	return LoadFileDictionary(f)
}

// LoadFileDictionary reads a dictionary from r.
func LoadFileDictionary(r io.Reader) (*FileDictionary, error) {
	d := &FileDictionary{forms: make(map[string][]Form)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("dictionary line %d: expected form and lemma", line)
		}
		form := Form{Lemma: Normalize(strings.TrimSpace(fields[1]))}
		if len(fields) > 2 {
			for _, tag := range strings.Split(fields[2], ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					form.Tags = append(form.Tags, strings.ToUpper(tag))
				}
			}
		}
		key := Normalize(strings.TrimSpace(fields[0]))
		d.forms[key] = append(d.forms[key], form)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	return d, nil
}

// Lookup implements Dictionary.
func (d *FileDictionary) Lookup(word string) []Form {
	return d.forms[word]
}

// Len returns the number of distinct surface forms.
func (d *FileDictionary) Len() int {
	return len(d.forms)
}

// StemDictionary approximates lemmas with the Russian Snowball stemmer and
// reports words from the Russian stop list as function words. It needs no data files.
type StemDictionary struct {
	stop map[string]bool
}

// NewStemDictionary builds a StemDictionary from the bundled Russian stop list.
func NewStemDictionary() (*StemDictionary, error) {
	tm, err := registry.NewCache().TokenMapNamed(ru.StopName)
	if err != nil {
		return nil, fmt.Errorf("failed to load russian stop words: %w", err)
	}
	stop := make(map[string]bool, len(tm))
	for word := range tm {
		stop[Normalize(word)] = true
	}
	return &StemDictionary{stop: stop}, nil
}

// Lookup implements Dictionary.
func (d *StemDictionary) Lookup(word string) []Form {
	if d.stop[word] {
		return []Form{{Lemma: word, Tags: []string{TagStop}}}
	}
	stem, err := snowball.Stem(word, "russian", true)
	if err != nil || stem == "" {
		return nil
	}
	return []Form{{Lemma: stem}}
}

// OpenDictionary returns a FileDictionary for path, or a StemDictionary when path is empty.
func OpenDictionary(path string) (Dictionary, error) {
	if path == "" {
		return NewStemDictionary()
	}
	return OpenFileDictionary(path)
}
