// Package uploads accepts user images: it sanitises their names, checks
// their type and size, stores them and asks the classifier for a label.
package uploads

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

var windowsDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SecureFilename reduces name to a flat ASCII file name that is safe to join
// onto a directory: accents are folded, path separators become underscores,
// runs of whitespace become a single underscore and every other character
// outside [A-Za-z0-9_.-] is dropped, as are leading and trailing dots and
// underscores. The result may be empty.
//
//	SecureFilename("My cool movie.mov")     == "My_cool_movie.mov"
//	SecureFilename("../../../etc/passwd")   == "etc_passwd"
//	SecureFilename("i contain cool ümläuts.txt") == "i_contain_cool_umlauts.txt"
func SecureFilename(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(isNonASCII)))
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = ""
	}

	folded = strings.NewReplacer("/", " ", "\\", " ").Replace(folded)
	folded = strings.Join(strings.Fields(folded), "_")
	folded = unsafeFilenameChars.ReplaceAllString(folded, "")
	folded = strings.Trim(folded, "._")

	if folded != "" {
		base := strings.ToUpper(strings.SplitN(folded, ".", 2)[0])
		if _, ok := windowsDeviceNames[base]; ok {
			folded = "_" + folded
		}
	}
	return folded
}

func isNonASCII(r rune) bool { return r > unicode.MaxASCII }

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// contentTypeFor returns the image type implied by name's extension, or
// false when the extension is not accepted.
func contentTypeFor(name string) (string, bool) {
	ct, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	return ct, ok
}
