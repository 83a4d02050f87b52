package wordnet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// indexFiles maps each supported part of speech to its WordNet index file.
var indexFiles = map[POS]string{
	Noun:      "index.noun",
	Adjective: "index.adj",
}

// Dict is an in-memory sense dictionary. It is read-only after loading and
// safe for concurrent lookups.
type Dict struct {
	senses map[POS]map[string][]string
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{senses: map[POS]map[string][]string{
		Noun:      {},
		Adjective: {},
	}}
}

// Add records senses for a lemma. The lemma is normalized first.
func (d *Dict) Add(pos POS, lemma string, senses ...string) {
	m, ok := d.senses[pos]
	if !ok {
		m = make(map[string][]string)
		d.senses[pos] = m
	}
	key := Normalize(lemma)
	for _, s := range senses {
		if !slices.Contains(m[key], s) {
			m[key] = append(m[key], s)
		}
	}
}

// Len returns the number of (pos, lemma) entries.
func (d *Dict) Len() int {
	n := 0
	for _, m := range d.senses {
		n += len(m)
	}
	return n
}

// Each calls fn for every entry, nouns before adjectives and lemmas in
// lexical order, stopping at the first error.
func (d *Dict) Each(fn func(pos POS, lemma string, senses []string) error) error {
	for _, pos := range []POS{Noun, Adjective} {
		m := d.senses[pos]
		lemmas := make([]string, 0, len(m))
		for l := range m {
			lemmas = append(lemmas, l)
		}
		slices.Sort(lemmas)
		for _, l := range lemmas {
			if err := fn(pos, l, m[l]); err != nil {
				return err
			}
		}
	}
	return nil
}

// LookupSenses implements Lexicon.
func (d *Dict) LookupSenses(ctx context.Context, lemma string, pos POS) ([]string, error) {
	return Resolve(ctx, d.exact, lemma, pos)
}

func (d *Dict) exact(_ context.Context, lemma string, pos POS) ([]string, error) {
	return d.senses[pos][lemma], nil
}

// Load reads index.noun and index.adj from a WordNet dict directory.
func Load(dir string) (*Dict, error) {
	d := NewDict()
	for _, pos := range []POS{Noun, Adjective} {
		path := filepath.Join(dir, indexFiles[pos])
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", indexFiles[pos], err)
		}
		err = d.ReadIndex(f, pos)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
	if d.Len() == 0 {
		return nil, fmt.Errorf("no entries found in %s", dir)
	}
	return d, nil
}

// ReadIndex parses one WordNet index file. Each data line has the form
//
//	lemma pos synset_cnt p_cnt [ptr_symbol...] sense_cnt tagsense_cnt synset_offset...
//
// Lines starting with a space are the license header and are skipped.
func (d *Dict) ReadIndex(r io.Reader, pos POS) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}

		f := strings.Fields(line)
		if len(f) < 6 {
			return fmt.Errorf("line %d: too few fields", lineNo)
		}
		synsetCnt, err := strconv.Atoi(f[2])
		if err != nil {
			return fmt.Errorf("line %d: synset_cnt: %w", lineNo, err)
		}
		pCnt, err := strconv.Atoi(f[3])
		if err != nil {
			return fmt.Errorf("line %d: p_cnt: %w", lineNo, err)
		}
		start := 4 + pCnt + 2
		if start > len(f) || len(f)-start != synsetCnt {
			return fmt.Errorf("line %d: expected %d synset offsets", lineNo, synsetCnt)
		}

		senses := make([]string, 0, synsetCnt)
		for _, off := range f[start:] {
			senses = append(senses, SenseID(off, pos))
		}
		d.Add(pos, f[0], senses...)
	}
	return sc.Err()
}
