package tokenize

import (
	"fmt"
	"strings"
	"unicode"
)

// Words longer than this become [UNK] outright, as in the reference
// WordPiece implementations.
const maxWordChars = 100

// EncodedInput is one tokenized request: unpadded token ids, an attention
// mask of equal length, token type ids, and the caller's original position
// for result reassembly.
type EncodedInput struct {
	IDs     []int64
	Mask    []int64
	TypeIDs []int64
	Index   int
	// Truncated is set when the input exceeded the model's max sequence
	// length and was cut from the end. Non-fatal.
	Truncated bool
}

// TruncationNotice signals that one input was truncated. It degrades
// accuracy but does not abort the request.
type TruncationNotice struct {
	Index int
	Limit int
}

func (n TruncationNotice) String() string {
	return fmt.Sprintf("input %d exceeded %d tokens and was truncated", n.Index, n.Limit)
}

// Encoder turns text into EncodedInputs for one model. Encoding is a pure
// function of the input text and the vocabulary; no hidden state.
type Encoder struct {
	vocab     *Vocab
	maxSeqLen int
}

// NewEncoder creates an encoder bound to a vocabulary and sequence limit.
func NewEncoder(vocab *Vocab, maxSeqLen int) *Encoder {
	if maxSeqLen <= 0 {
		maxSeqLen = 512
	}
	return &Encoder{vocab: vocab, maxSeqLen: maxSeqLen}
}

// PadID returns the padding token id for batch padding.
func (e *Encoder) PadID() int64 {
	return e.vocab.PadID()
}

// MaxSeqLen returns the sequence limit this encoder truncates to.
func (e *Encoder) MaxSeqLen() int {
	return e.maxSeqLen
}

// Encode tokenizes a single text: [CLS] tokens... [SEP], truncated from the
// end to the sequence limit with the final slot kept as [SEP].
func (e *Encoder) Encode(text string) EncodedInput {
	ids := make([]int64, 0, 16)
	ids = append(ids, e.vocab.cls)
	ids = append(ids, e.wordPieces(text)...)
	ids = append(ids, e.vocab.sep)

	truncated := false
	if len(ids) > e.maxSeqLen {
		ids = ids[:e.maxSeqLen]
		ids[len(ids)-1] = e.vocab.sep
		truncated = true
	}

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return EncodedInput{
		IDs:       ids,
		Mask:      mask,
		TypeIDs:   make([]int64, len(ids)),
		Truncated: truncated,
	}
}

// EncodePair tokenizes a (query, document) pair for cross-encoder scoring:
// [CLS] query [SEP] document [SEP], with token type ids 0 for the query
// segment and 1 for the document segment. The document side is truncated
// first; the query is only cut when it alone exceeds the limit.
func (e *Encoder) EncodePair(query, document string) EncodedInput {
	qtok := e.wordPieces(query)
	dtok := e.wordPieces(document)

	truncated := false
	avail := e.maxSeqLen - 3 // [CLS] and two [SEP]
	if avail < 0 {
		avail = 0
	}
	if len(qtok) > avail {
		qtok = qtok[:avail]
		dtok = nil
		truncated = true
	}
	if len(qtok)+len(dtok) > avail {
		dtok = dtok[:avail-len(qtok)]
		truncated = true
	}

	n := len(qtok) + len(dtok) + 3
	ids := make([]int64, 0, n)
	types := make([]int64, 0, n)

	ids = append(ids, e.vocab.cls)
	types = append(types, 0)
	for _, id := range qtok {
		ids = append(ids, id)
		types = append(types, 0)
	}
	ids = append(ids, e.vocab.sep)
	types = append(types, 0)
	for _, id := range dtok {
		ids = append(ids, id)
		types = append(types, 1)
	}
	ids = append(ids, e.vocab.sep)
	types = append(types, 1)

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return EncodedInput{IDs: ids, Mask: mask, TypeIDs: types, Truncated: truncated}
}

// wordPieces lowercases, splits into words and punctuation, and applies
// greedy longest-match WordPiece to each word.
func (e *Encoder) wordPieces(text string) []int64 {
	var ids []int64
	for _, word := range basicTokenize(text) {
		ids = append(ids, e.wordPiece(word)...)
	}
	return ids
}

func (e *Encoder) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{e.vocab.unk}
	}

	var ids []int64
	start := 0
	for start < len(runes) {
		end := len(runes)
		var match int64 = -1
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := e.vocab.ID(sub); ok {
				match = id
				break
			}
			end--
		}
		if match < 0 {
			// No prefix matched; the whole word is unknown.
			return []int64{e.vocab.unk}
		}
		ids = append(ids, match)
		start = end
	}
	return ids
}

// basicTokenize lowercases and splits on whitespace, emitting punctuation
// runes as standalone tokens.
func basicTokenize(text string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return words
}
