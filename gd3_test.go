package opl9

import (
	"strings"
	"testing"
)

func TestGD3_RoundTrip(t *testing.T) {
	tag := &GD3Tag{
		TitleEN:     "My Song",
		TitleJP:     "曲名",
		GameEN:      "My Game",
		SystemEN:    "OPL3",
		AuthorEN:    "Composer",
		Date:        "2026",
		ConvertedBy: "opl9conv",
		Notes:       "converted from native capture",
	}
	data := tag.Serialize()
	if !strings.HasPrefix(string(data[0:4]), gd3Magic) {
		t.Fatalf("bad magic: %q", data[0:4])
	}
	got, err := ParseGD3(data)
	if err != nil {
		t.Fatalf("ParseGD3: %v", err)
	}
	if got.TitleEN != tag.TitleEN {
		t.Errorf("TitleEN = %q, want %q", got.TitleEN, tag.TitleEN)
	}
	if got.TitleJP != tag.TitleJP {
		t.Errorf("TitleJP = %q, want %q", got.TitleJP, tag.TitleJP)
	}
	if got.AuthorEN != tag.AuthorEN {
		t.Errorf("AuthorEN = %q, want %q", got.AuthorEN, tag.AuthorEN)
	}
	if got.ConvertedBy != tag.ConvertedBy {
		t.Errorf("ConvertedBy = %q, want %q", got.ConvertedBy, tag.ConvertedBy)
	}
}

func TestGD3_EmptyFieldsRoundTripAsEmpty(t *testing.T) {
	tag := &GD3Tag{}
	data := tag.Serialize()
	got, err := ParseGD3(data)
	if err != nil {
		t.Fatalf("ParseGD3: %v", err)
	}
	if got.TitleEN != "" || got.Notes != "" {
		t.Fatalf("expected empty fields, got %+v", got)
	}
}

func TestGD3_InvalidUTF8DegradesToEmpty(t *testing.T) {
	tag := &GD3Tag{TitleEN: "\xff\xfe not valid utf8"}
	data := tag.Serialize()
	got, err := ParseGD3(data)
	if err != nil {
		t.Fatalf("ParseGD3: %v", err)
	}
	if got.TitleEN != "" {
		t.Fatalf("TitleEN = %q, want empty string for invalid UTF-8 input", got.TitleEN)
	}
}

func TestParseGD3_BadMagic(t *testing.T) {
	_, err := ParseGD3([]byte("not a gd3 tag"))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseGD3_TruncatedFieldStillParsesEarlierOnes(t *testing.T) {
	tag := &GD3Tag{TitleEN: "Complete Title"}
	data := tag.Serialize()
	// Truncate mid-way through the later fields.
	truncated := data[:len(data)-4]
	got, err := ParseGD3(truncated)
	if err != nil {
		t.Fatalf("ParseGD3: %v", err)
	}
	if got.TitleEN != "Complete Title" {
		t.Fatalf("TitleEN = %q, want %q", got.TitleEN, "Complete Title")
	}
}
