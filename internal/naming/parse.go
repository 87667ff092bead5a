package naming

import (
	"regexp"
	"strings"
)

// Parsed is the result of a successful Parse.
type Parsed struct {
	StudentName string
	ClassDate   string
	// RawName is the name capture before cleaning. Cleaning drops asterisks,
	// so callers that honour the exclusion marker must inspect this field.
	RawName string
}

var (
	extensionPattern = regexp.MustCompile(`\.[A-Za-z0-9]{1,5}$`)
	// raw recording names: "Jane Doe - 2024-03-01 10:00:00 GMT"
	loosePattern = regexp.MustCompile(`^(.+?)[\s_\-–—,.]+(\d{4}-\d{2}-\d{2})(?:[\sT_\-.].*)?$`)
	// already-canonical names: "Jane_Doe_2024-03-01_AbCdEfGhIj"
	strictPattern   = regexp.MustCompile(`^([^_]+(?:_[^_]+)*?)_(\d{4}-\d{2}-\d{2})(?:_[A-Za-z0-9_-]{10})?$`)
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	collapsePattern = regexp.MustCompile(`[\s\p{Zs}_]+`)
	separatorFixer  = strings.NewReplacer("/", " ", `\`, " ", "|", " ")
	punctuationDrop = strings.NewReplacer("~", "", "^", "", "*", "", "'", "", "`", "", "+", "")
)

// Parse extracts the student name and class date from a file name. It returns
// false when neither the loose nor the strict pattern yields a non-empty name
// and a YYYY-MM-DD date.
func Parse(raw string) (Parsed, bool) {
	base := strings.TrimSpace(raw)
	base = extensionPattern.ReplaceAllString(base, "")
	base = strings.TrimSpace(separatorFixer.Replace(base))
	if base == "" {
		return Parsed{}, false
	}

	var rawName, date string
	if m := loosePattern.FindStringSubmatch(base); m != nil {
		rawName, date = m[1], m[2]
	} else if m := strictPattern.FindStringSubmatch(base); m != nil {
		rawName, date = m[1], m[2]
	} else {
		return Parsed{}, false
	}

	name := CleanName(rawName)
	if name == "" || !datePattern.MatchString(date) {
		return Parsed{}, false
	}
	return Parsed{StudentName: name, ClassDate: date, RawName: rawName}, true
}

// CleanName strips decoration characters, collapses whitespace and
// underscores to single spaces and trims trailing separators.
func CleanName(value string) string {
	value = punctuationDrop.Replace(value)
	value = collapsePattern.ReplaceAllString(value, " ")
	value = strings.TrimRight(value, " -–—.,")
	return strings.TrimSpace(value)
}
