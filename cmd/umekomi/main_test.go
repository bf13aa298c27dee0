package main

import (
	"reflect"
	"strings"
	"testing"
)

func TestReadLines(t *testing.T) {
	lines, err := readLines(strings.NewReader("hello\n\nworld\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"hello", "world"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("readLines = %v, want %v", lines, want)
	}
}

func TestReadLinesEmpty(t *testing.T) {
	lines, err := readLines(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if lines != nil {
		t.Errorf("readLines on empty input = %v", lines)
	}
}

func TestLoadConfigDefault(t *testing.T) {
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.MaxSize == 0 {
		t.Error("defaults not applied")
	}
}
