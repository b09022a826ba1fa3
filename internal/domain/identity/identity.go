// Package identity normalizes and one-way hashes customer identity
// fields into the format the Conversions API expects.
//
// Every recognized field is lower-cased and trimmed before hashing;
// phone numbers additionally lose all non-digit characters. A field
// that fails normalization to a non-empty value is omitted entirely -
// an empty placeholder must never be hashed, because the platform
// would index the digest of "" as a real identity.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/leadfuel/pixelbridge/internal/domain/model"
)

// Hash produces the hashed user_data fields from customer fields.
// Pure function: no side effects, no network access.
func Hash(c model.CustomerFields) model.UserData {
	return model.UserData{
		Email:       hashField(normalize(c.Email)),
		Phone:       hashField(digitsOnly(normalize(c.Phone))),
		FirstName:   hashField(normalize(c.FirstName)),
		LastName:    hashField(normalize(c.LastName)),
		DateOfBirth: hashField(digitsOnly(normalize(c.DateOfBirth))),
		Gender:      hashField(normalize(c.Gender)),
		City:        hashField(normalize(c.City)),
		State:       hashField(normalize(c.State)),
		ZipCode:     hashField(normalize(c.ZipCode)),
		Country:     hashField(normalize(c.Country)),
	}
}

// Passthrough maps customer fields into user_data without hashing.
// Fields are still normalized so raw and hashed modes stay comparable.
func Passthrough(c model.CustomerFields) model.UserData {
	return model.UserData{
		Email:       normalize(c.Email),
		Phone:       digitsOnly(normalize(c.Phone)),
		FirstName:   normalize(c.FirstName),
		LastName:    normalize(c.LastName),
		DateOfBirth: digitsOnly(normalize(c.DateOfBirth)),
		Gender:      normalize(c.Gender),
		City:        normalize(c.City),
		State:       normalize(c.State),
		ZipCode:     normalize(c.ZipCode),
		Country:     normalize(c.Country),
	}
}

// normalize lower-cases and trims surrounding whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// digitsOnly strips every non-digit rune. The platform matches phone
// hashes on digits only; hashing a formatted number produces a digest
// that never matches anything on their side.
func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hashField returns the SHA-256 hex digest of v, or "" when v is empty.
func hashField(v string) string {
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
