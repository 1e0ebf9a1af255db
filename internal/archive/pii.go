package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d?[\s.\-]?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
)

// HashCaller returns a stable SHA-256 digest of the digits in a phone number
// so formatting differences hash the same.
func HashCaller(number string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if digits == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}

// Redact masks email addresses and phone numbers. Patient names stay so the
// transcript remains readable for front-desk review.
func Redact(text string) string {
	text = emailPattern.ReplaceAllString(text, "[EMAIL]")
	return phonePattern.ReplaceAllString(text, "[PHONE]")
}

func redactRecord(rec *TranscriptRecord) {
	rec.Transcript = Redact(rec.Transcript)
	rec.Summary = Redact(rec.Summary)
	for i := range rec.Turns {
		rec.Turns[i].Text = Redact(rec.Turns[i].Text)
	}
}
