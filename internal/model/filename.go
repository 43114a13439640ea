package model

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// fallbackArchiveName is used when a title sanitizes to nothing.
const fallbackArchiveName = "book"

var (
	invalidFileNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	repeatedWhitespace   = regexp.MustCompile(`\s+`)
	reservedWindowsNames = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[0-9]|lpt[0-9])(\..*)?$`)
)

// ArchiveFileName derives the archive filename for a book title.
//
// Example:
//
//	ArchiveFileName("My:Book*") // "MyBook.zip"
//	ArchiveFileName("...")      // "book.zip"
func ArchiveFileName(title string) string {
	name := SanitizeFileName(title)
	if name == "" {
		name = fallbackArchiveName
	}
	return name + ".zip"
}

// SanitizeFileName removes characters that are invalid in file names.
//
// The following transformations are applied:
//   - Invalid characters (<>:"/\|?* and control chars) are removed
//   - Multiple whitespace is collapsed to a single space
//   - Leading and trailing dots and whitespace are removed
//   - Windows reserved device names (CON, NUL, COM1, ...) become empty
//
// Example:
//
//	SanitizeFileName("Song: Part 1/2") // Returns "Song Part 12"
func SanitizeFileName(name string) string {
	name = invalidFileNameChars.ReplaceAllString(name, "")
	name = repeatedWhitespace.ReplaceAllString(name, " ")
	name = strings.Trim(name, ". ")

	if reservedWindowsNames.MatchString(name) {
		return ""
	}

	// Most filesystems cap a single name at 255 bytes; keep room for ".zip".
	if len(name) > 250 {
		name = strings.TrimRight(truncateUTF8(name, 250), ". ")
	}

	return name
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
