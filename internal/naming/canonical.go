package naming

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

const (
	RecordingExt  = ".mp4"
	TranscriptExt = ".txt"
	fragmentLen   = 10
)

var (
	canonicalStem       = `([^\s/\\_][^\s/\\]*?)_(\d{4}-\d{2}-\d{2})_([A-Za-z0-9_-]{10})`
	canonicalRecording  = regexp.MustCompile(`^` + canonicalStem + `\.mp4$`)
	canonicalTranscript = regexp.MustCompile(`^` + canonicalStem + `\.txt$`)
	canonicalStemOnly   = regexp.MustCompile(`^` + canonicalStem + `$`)
	trailingFragment    = regexp.MustCompile(`_(\d{4}-\d{2}-\d{2})_([A-Za-z0-9_-]{10})(?:\.[A-Za-z0-9]+)?$`)
)

// CanonicalRecording builds <Name_With_Underscores>_<date>_<fragment>.mp4.
func CanonicalRecording(studentName, classDate, fileID string) string {
	return canonicalBase(studentName, classDate, fileID) + RecordingExt
}

func canonicalBase(studentName, classDate, fileID string) string {
	name := strings.Join(strings.Fields(CleanName(studentName)), "_")
	return name + "_" + classDate + "_" + IDFragment(fileID)
}

// IDFragment derives the 10-character suffix from a file identifier. Characters
// outside [A-Za-z0-9_-] are dropped and short identifiers are left-padded with 0.
func IDFragment(fileID string) string {
	var b strings.Builder
	for _, r := range fileID {
		if b.Len() == fragmentLen {
			break
		}
		if r == '_' || r == '-' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	frag := b.String()
	if len(frag) < fragmentLen {
		frag = strings.Repeat("0", fragmentLen-len(frag)) + frag
	}
	return frag
}

// IsCanonicalRecording reports whether name already follows the recording scheme.
func IsCanonicalRecording(name string) bool {
	return canonicalRecording.MatchString(name)
}

// IsCanonicalTranscript reports whether name follows the transcript scheme.
func IsCanonicalTranscript(name string) bool {
	return canonicalTranscript.MatchString(name)
}

// CanonicalTitle returns the recording name a provider tracking title refers
// to. Titles may carry the .mp4 extension or be the bare stem.
func CanonicalTitle(title string) (string, bool) {
	title = strings.TrimSpace(path.Base(strings.TrimSpace(title)))
	switch {
	case canonicalRecording.MatchString(title):
		return title, true
	case canonicalStemOnly.MatchString(title):
		return title + RecordingExt, true
	default:
		return "", false
	}
}

// Stem drops the final extension from name.
func Stem(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext)
}

// TranscriptName maps a recording name to its transcript name.
func TranscriptName(recording string) string {
	return Stem(recording) + TranscriptExt
}

// DateAndFragment extracts the session date and id fragment from the tail of a
// canonical name.
func DateAndFragment(name string) (date, fragment string, ok bool) {
	m := trailingFragment.FindStringSubmatch(path.Base(name))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// NormalizeKey folds case and collapses whitespace and underscores so roster
// names and parsed names compare equal.
func NormalizeKey(name string) string {
	folded := cases.Fold().String(name)
	folded = collapsePattern.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}
