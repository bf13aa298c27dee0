package tokenize

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func testVocab() *Vocab {
	return NewVocab([]string{
		"[PAD]", "[UNK]", "[CLS]", "[SEP]",
		"hello", "world", "orders", "order", "##s", "food", "##ing",
		",", "!",
	})
}

func TestEncode(t *testing.T) {
	enc := NewEncoder(testVocab(), 16)
	in := enc.Encode("Hello, world!")

	// [CLS] hello , world ! [SEP]
	want := []int64{2, 4, 11, 5, 12, 3}
	if !reflect.DeepEqual(in.IDs, want) {
		t.Errorf("IDs = %v, want %v", in.IDs, want)
	}
	if len(in.Mask) != len(in.IDs) {
		t.Fatalf("mask length %d != ids length %d", len(in.Mask), len(in.IDs))
	}
	for i, m := range in.Mask {
		if m != 1 {
			t.Errorf("Mask[%d] = %d, want 1", i, m)
		}
	}
	if in.Truncated {
		t.Error("short input should not be truncated")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc := NewEncoder(testVocab(), 16)
	a := enc.Encode("hello world")
	b := enc.Encode("hello world")
	if !reflect.DeepEqual(a.IDs, b.IDs) || !reflect.DeepEqual(a.Mask, b.Mask) {
		t.Error("encoding the same text twice should be identical")
	}
}

func TestEncodeWordPiece(t *testing.T) {
	enc := NewEncoder(testVocab(), 16)
	in := enc.Encode("orders")

	// "orders" is in the vocabulary whole; longest match wins over order+##s.
	want := []int64{2, 6, 3}
	if !reflect.DeepEqual(in.IDs, want) {
		t.Errorf("IDs = %v, want %v", in.IDs, want)
	}
}

func TestEncodeContinuation(t *testing.T) {
	v := NewVocab([]string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "food", "##ing"})
	enc := NewEncoder(v, 16)
	in := enc.Encode("fooding")

	want := []int64{2, 4, 5, 3}
	if !reflect.DeepEqual(in.IDs, want) {
		t.Errorf("IDs = %v, want %v", in.IDs, want)
	}
}

func TestEncodeUnknown(t *testing.T) {
	enc := NewEncoder(testVocab(), 16)
	in := enc.Encode("zzzqqq")

	want := []int64{2, 1, 3} // [CLS] [UNK] [SEP]
	if !reflect.DeepEqual(in.IDs, want) {
		t.Errorf("IDs = %v, want %v", in.IDs, want)
	}
}

func TestEncodeTruncation(t *testing.T) {
	enc := NewEncoder(testVocab(), 5)
	in := enc.Encode("hello world hello world hello world")

	if !in.Truncated {
		t.Error("long input should set Truncated")
	}
	if len(in.IDs) != 5 {
		t.Errorf("len(IDs) = %d, want 5", len(in.IDs))
	}
	if in.IDs[0] != 2 {
		t.Errorf("IDs[0] = %d, want [CLS]", in.IDs[0])
	}
	if in.IDs[4] != 3 {
		t.Errorf("IDs[4] = %d, want [SEP] at the end", in.IDs[4])
	}
}

func TestEncodePair(t *testing.T) {
	enc := NewEncoder(testVocab(), 16)
	in := enc.EncodePair("hello", "world")

	wantIDs := []int64{2, 4, 3, 5, 3}
	wantTypes := []int64{0, 0, 0, 1, 1}
	if !reflect.DeepEqual(in.IDs, wantIDs) {
		t.Errorf("IDs = %v, want %v", in.IDs, wantIDs)
	}
	if !reflect.DeepEqual(in.TypeIDs, wantTypes) {
		t.Errorf("TypeIDs = %v, want %v", in.TypeIDs, wantTypes)
	}
}

func TestEncodePairTruncatesDocumentFirst(t *testing.T) {
	enc := NewEncoder(testVocab(), 7)
	in := enc.EncodePair("hello world", "hello world hello world")

	if !in.Truncated {
		t.Error("should be truncated")
	}
	if len(in.IDs) > 7 {
		t.Errorf("len(IDs) = %d, exceeds limit", len(in.IDs))
	}
	// Query segment survives intact: [CLS] hello world [SEP] ...
	if in.IDs[1] != 4 || in.IDs[2] != 5 {
		t.Errorf("query tokens clipped: %v", in.IDs)
	}
	if in.IDs[len(in.IDs)-1] != 3 {
		t.Error("pair must end with [SEP]")
	}
	if in.TypeIDs[len(in.TypeIDs)-1] != 1 {
		t.Error("final [SEP] belongs to the document segment")
	}
}

func TestLoadVocab(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.txt")
	content := "[PAD]\n[UNK]\n[CLS]\n[SEP]\nhello\nworld\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	v, err := LoadVocab(path)
	if err != nil {
		t.Fatalf("LoadVocab error: %v", err)
	}
	if v.Size() != 6 {
		t.Errorf("Size = %d, want 6", v.Size())
	}
	if id, ok := v.ID("world"); !ok || id != 5 {
		t.Errorf("ID(world) = %d, %v", id, ok)
	}
	if v.PadID() != 0 {
		t.Errorf("PadID = %d", v.PadID())
	}
}

func TestLoadVocabMissing(t *testing.T) {
	if _, err := LoadVocab(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("expected error for missing vocab file")
	}
}

func TestBasicTokenize(t *testing.T) {
	words := basicTokenize("  Hello,   WORLD!  ")
	want := []string{"hello", ",", "world", "!"}
	if !reflect.DeepEqual(words, want) {
		t.Errorf("basicTokenize = %v, want %v", words, want)
	}
	if basicTokenize("") != nil {
		t.Error("empty string should return nil")
	}
}
