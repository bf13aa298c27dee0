package batch

import (
	"reflect"
	"testing"

	"github.com/hyperjump/umekomi/internal/tokenize"
)

func input(index int, ids ...int64) tokenize.EncodedInput {
	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return tokenize.EncodedInput{
		IDs:     ids,
		Mask:    mask,
		TypeIDs: make([]int64, len(ids)),
		Index:   index,
	}
}

func TestScheduleEmpty(t *testing.T) {
	if got := Schedule(nil, 4, 0); got != nil {
		t.Errorf("Schedule(nil) = %v, want nil", got)
	}
}

func TestSchedulePadding(t *testing.T) {
	batches := Schedule([]tokenize.EncodedInput{
		input(0, 101, 7, 102),
		input(1, 101, 102),
	}, 4, 0)

	if len(batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(batches))
	}
	b := batches[0]
	if b.BatchSize != 2 || b.SeqLen != 3 {
		t.Fatalf("batch shape %dx%d, want 2x3", b.BatchSize, b.SeqLen)
	}
	wantIDs := []int64{101, 7, 102, 101, 102, 0}
	if !reflect.DeepEqual(b.IDs, wantIDs) {
		t.Errorf("IDs = %v, want %v", b.IDs, wantIDs)
	}
	wantMask := []int64{1, 1, 1, 1, 1, 0}
	if !reflect.DeepEqual(b.Mask, wantMask) {
		t.Errorf("Mask = %v, want %v", b.Mask, wantMask)
	}
	if !reflect.DeepEqual(b.Indices, []int{0, 1}) {
		t.Errorf("Indices = %v", b.Indices)
	}
}

func TestScheduleGrouping(t *testing.T) {
	inputs := []tokenize.EncodedInput{
		input(0, 1), input(1, 2), input(2, 3), input(3, 4), input(4, 5),
	}
	batches := Schedule(inputs, 2, 0)

	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	var seen []int
	for _, b := range batches {
		if b.BatchSize > 2 {
			t.Errorf("batch size %d exceeds max", b.BatchSize)
		}
		seen = append(seen, b.Indices...)
	}
	if !reflect.DeepEqual(seen, []int{0, 1, 2, 3, 4}) {
		t.Errorf("scattered indices = %v", seen)
	}
}

func TestSchedulePerBatchSeqLen(t *testing.T) {
	// Each batch pads to its own longest member, not a global max.
	batches := Schedule([]tokenize.EncodedInput{
		input(0, 1, 2, 3, 4),
		input(1, 1, 2, 3, 4),
		input(2, 1),
	}, 2, 0)

	if len(batches) != 2 {
		t.Fatalf("got %d batches", len(batches))
	}
	if batches[0].SeqLen != 4 {
		t.Errorf("batch 0 SeqLen = %d, want 4", batches[0].SeqLen)
	}
	if batches[1].SeqLen != 1 {
		t.Errorf("batch 1 SeqLen = %d, want 1", batches[1].SeqLen)
	}
}

func TestMaskRow(t *testing.T) {
	b := Schedule([]tokenize.EncodedInput{
		input(0, 1, 2),
		input(1, 3),
	}, 2, 0)[0]

	if !reflect.DeepEqual(b.MaskRow(0), []int64{1, 1}) {
		t.Errorf("MaskRow(0) = %v", b.MaskRow(0))
	}
	if !reflect.DeepEqual(b.MaskRow(1), []int64{1, 0}) {
		t.Errorf("MaskRow(1) = %v", b.MaskRow(1))
	}
}
