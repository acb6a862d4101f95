// Package phone extracts and normalizes Egyptian mobile numbers from free text.
package phone

import (
	"regexp"
	"strings"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// Length is the digit count of a national-format mobile number.
const Length = 11

// Prefixes lists the accepted mobile operator prefixes.
var Prefixes = []string{"010", "011", "012", "015"}

// candidateRe matches a prefix followed by eight digits, each optionally
// preceded by spaces or hyphens.
var candidateRe = regexp.MustCompile(`01[0125](?:[ \-]*[0-9]){8}`)

// asciiDigits maps Arabic-Indic and Extended Arabic-Indic digits to ASCII.
var asciiDigits = runes.Map(func(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	}
	return r
})

// Extract returns every valid mobile number found in text, normalized to
// 11 digits, deduplicated in first-seen order. A run of digits longer than
// a mobile number is rejected rather than truncated.
func Extract(text string) []string {
	text = asciiNumerals(text)

	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, loc := range candidateRe.FindAllStringIndex(text, -1) {
		if loc[1] < len(text) && isDigit(text[loc[1]]) {
			continue
		}
		p := stripSeparators(text[loc[0]:loc[1]])
		if !Valid(p) || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Valid reports whether p is an 11-digit number with an accepted prefix.
func Valid(p string) bool {
	if len(p) != Length {
		return false
	}
	for i := 0; i < len(p); i++ {
		if !isDigit(p[i]) {
			return false
		}
	}
	for _, pre := range Prefixes {
		if strings.HasPrefix(p, pre) {
			return true
		}
	}
	return false
}

// Normalize converts a loosely formatted number ("+20 10 1234 5678",
// "0020-101-234-5678", "٠١٠١٢٣٤٥٦٧٨") to national format. Returns "" when
// the result is not a valid mobile number.
func Normalize(raw string) string {
	raw = asciiNumerals(raw)

	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if isDigit(raw[i]) {
			b.WriteByte(raw[i])
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "0020"):
		digits = "0" + digits[4:]
	case strings.HasPrefix(digits, "20") && len(digits) == Length+1:
		digits = "0" + digits[2:]
	}
	if !Valid(digits) {
		return ""
	}
	return digits
}

// International formats a national number as "+20 1X XXXX XXXX".
func International(p string) string {
	if !Valid(p) {
		return p
	}
	return "+20 " + p[1:3] + " " + p[3:7] + " " + p[7:]
}

func asciiNumerals(s string) string {
	out, _, err := transform.String(asciiDigits, s)
	if err != nil {
		return s
	}
	return out
}

func stripSeparators(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
