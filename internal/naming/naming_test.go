package naming_test

import (
	"testing"

	"coachflow/internal/naming"
)

func TestParseExamples(t *testing.T) {
	cases := []struct {
		raw  string
		name string
		date string
	}{
		{"Jane Doe - 2024-03-01 10:00:00 GMT.mp4", "Jane Doe", "2024-03-01"},
		{"Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", "Jane Doe", "2024-03-01"},
		{"Jane_Doe_2024-03-01_AbCdEfGhIj.txt", "Jane Doe", "2024-03-01"},
		{"Jane_Doe_2024-03-01", "Jane Doe", "2024-03-01"},
		{"  O'Brien~ Kate  2024-12-31T09:00.mov", "OBrien Kate", "2024-12-31"},
		{"Mary-Jane   Smith_ 2023-01-05 recording.mp4", "Mary-Jane Smith", "2023-01-05"},
		{"Jane Doe | 2024-03-01.mp4", "Jane Doe", "2024-03-01"},
		{"archive/Jane Doe - 2024-03-01.mp4", "archive Jane Doe", "2024-03-01"},
		{"*Unknown* - 2024-03-01 10:00.mp4", "Unknown", "2024-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, ok := naming.Parse(tc.raw)
			if !ok {
				t.Fatalf("Parse(%q) failed", tc.raw)
			}
			if got.StudentName != tc.name || got.ClassDate != tc.date {
				t.Fatalf("Parse(%q) = %q/%q, want %q/%q", tc.raw, got.StudentName, got.ClassDate, tc.name, tc.date)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	for _, raw := range []string{
		"",
		"meeting.mp4",
		"Jane Doe 03-01-2024.mp4",
		"Jane Doe - 2024-3-1.mp4",
		"2024-03-01.mp4",
		" - 2024-03-01 10:00.mp4",
		"*** - 2024-03-01.mp4",
	} {
		if got, ok := naming.Parse(raw); ok {
			t.Fatalf("Parse(%q) = %+v, expected failure", raw, got)
		}
	}
}

func TestParseKeepsRawNameForExclusionMarker(t *testing.T) {
	got, ok := naming.Parse("Jane*_Doe_2024-03-01_AbCdEfGhIj.txt")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got.StudentName != "Jane Doe" {
		t.Fatalf("unexpected cleaned name %q", got.StudentName)
	}
	if got.RawName != "Jane*_Doe" {
		t.Fatalf("unexpected raw name %q", got.RawName)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	raw := "Jane Doe - 2024-03-01 10:00:00 GMT.mp4"
	first, _ := naming.Parse(raw)
	for i := 0; i < 5; i++ {
		again, _ := naming.Parse(raw)
		if again != first {
			t.Fatalf("Parse not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestCanonicalRecordingExample(t *testing.T) {
	parsed, ok := naming.Parse("Jane Doe - 2024-03-01 10:00:00 GMT.mp4")
	if !ok {
		t.Fatal("parse failed")
	}
	got := naming.CanonicalRecording(parsed.StudentName, parsed.ClassDate, "AbCdEfGhIjKlMnOp")
	if got != "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4" {
		t.Fatalf("unexpected canonical name %q", got)
	}
	if !naming.IsCanonicalRecording(got) {
		t.Fatalf("expected %q to match the canonical pattern", got)
	}
	if naming.TranscriptName(got) != "Jane_Doe_2024-03-01_AbCdEfGhIj.txt" {
		t.Fatalf("unexpected transcript name %q", naming.TranscriptName(got))
	}
}

func TestCanonicalRoundTrip(t *testing.T) {
	raws := []string{
		"Jane Doe - 2024-03-01 10:00:00 GMT.mp4",
		"José  Pérez_2024-02-29 session.mp4",
		"Mary-Jane Smith - 2023-01-05.mp4",
		"Li   Wei - 2022-11-30 09_00.webm",
		"Jane\u00a0Doe - 2024-03-01 10:00:00 GMT.mp4",
	}
	ids := []string{"1A2b3C4d5E6f7G", "x", "-_abcDEF123456", "id/with/slashes/and.dots", "NbSpNbSpNbSp"}
	for i, raw := range raws {
		parsed, ok := naming.Parse(raw)
		if !ok {
			t.Fatalf("Parse(%q) failed", raw)
		}
		canonical := naming.CanonicalRecording(parsed.StudentName, parsed.ClassDate, ids[i])
		if !naming.IsCanonicalRecording(canonical) {
			t.Fatalf("%q does not match canonical pattern", canonical)
		}
		again, ok := naming.Parse(canonical)
		if !ok {
			t.Fatalf("Parse(%q) failed", canonical)
		}
		if again.StudentName != parsed.StudentName || again.ClassDate != parsed.ClassDate {
			t.Fatalf("round trip changed %q: %+v -> %+v", raw, parsed, again)
		}
		if transcript, ok := naming.Parse(naming.TranscriptName(canonical)); !ok || transcript.StudentName != parsed.StudentName {
			t.Fatalf("transcript name lost identity: %+v", transcript)
		}
	}
}

func TestIDFragment(t *testing.T) {
	cases := map[string]string{
		"AbCdEfGhIjKl":      "AbCdEfGhIj",
		"abc":               "0000000abc",
		"a.b/c d-e_f123456": "abcd-e_f12",
		"":                  "0000000000",
	}
	for id, want := range cases {
		if got := naming.IDFragment(id); got != want {
			t.Fatalf("IDFragment(%q) = %q, want %q", id, got, want)
		}
	}
}

func TestCanonicalTitle(t *testing.T) {
	cases := []struct {
		title string
		want  string
		ok    bool
	}{
		{"Jane_Doe_2024-03-01_AbCdEfGhIj", "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", true},
		{"Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", true},
		{"incoming/Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", "Jane_Doe_2024-03-01_AbCdEfGhIj.mp4", true},
		{"Jane Doe - 2024-03-01", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := naming.CanonicalTitle(tc.title)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("CanonicalTitle(%q) = %q/%v, want %q/%v", tc.title, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDateAndFragment(t *testing.T) {
	date, frag, ok := naming.DateAndFragment("transcripts/Jane_Doe_2024-03-01_AbCdEfGhIj.txt")
	if !ok || date != "2024-03-01" || frag != "AbCdEfGhIj" {
		t.Fatalf("unexpected result %q %q %v", date, frag, ok)
	}
	if _, _, ok := naming.DateAndFragment("notes.txt"); ok {
		t.Fatal("expected failure for non-canonical name")
	}
}

func TestNormalizeKey(t *testing.T) {
	if naming.NormalizeKey("  JANE__doe ") != naming.NormalizeKey("jane doe") {
		t.Fatal("expected case and separator insensitive keys to match")
	}
	if naming.NormalizeKey("ÉLODIE Martin") != naming.NormalizeKey("élodie martin") {
		t.Fatal("expected full case folding")
	}
}
