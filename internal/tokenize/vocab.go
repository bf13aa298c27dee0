// Package tokenize converts text into the token id sequences model graphs expect.
package tokenize

import (
	"bufio"
	"fmt"
	"os"
)

// Fallback ids used when a vocabulary does not name its special tokens.
// These match the BERT-family convention.
const (
	fallbackPadID = 0
	fallbackUnkID = 100
	fallbackClsID = 101
	fallbackSepID = 102
)

// Vocab is a WordPiece vocabulary: token ids are line numbers in vocab.txt.
type Vocab struct {
	ids map[string]int64

	pad int64
	unk int64
	cls int64
	sep int64
}

// LoadVocab reads a vocab.txt (one token per line, id = line number).
func LoadVocab(path string) (*Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("vocabulary at %s is empty", path)
	}
	return NewVocab(tokens), nil
}

// NewVocab builds a vocabulary from an ordered token list.
func NewVocab(tokens []string) *Vocab {
	v := &Vocab{ids: make(map[string]int64, len(tokens))}
	for i, tok := range tokens {
		if _, dup := v.ids[tok]; !dup {
			v.ids[tok] = int64(i)
		}
	}
	v.pad = v.lookupSpecial("[PAD]", fallbackPadID)
	v.unk = v.lookupSpecial("[UNK]", fallbackUnkID)
	v.cls = v.lookupSpecial("[CLS]", fallbackClsID)
	v.sep = v.lookupSpecial("[SEP]", fallbackSepID)
	return v
}

func (v *Vocab) lookupSpecial(token string, fallback int64) int64 {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return fallback
}

// ID returns the id for token, or false if the token is out of vocabulary.
func (v *Vocab) ID(token string) (int64, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Size returns the number of distinct tokens.
func (v *Vocab) Size() int {
	return len(v.ids)
}

// PadID returns the padding token id.
func (v *Vocab) PadID() int64 { return v.pad }
