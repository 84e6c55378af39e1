package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
)

// ParseBasicAuth decodes an Authorization header of the form
// "Basic base64(user:pass)". The password may itself contain colons.
func ParseBasicAuth(header string) (username, password string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}

	username, password, ok = strings.Cut(string(decoded), ":")
	return username, password, ok
}

// ConstantTimeEqual compares a and b without leaking where they differ.
// Both sides are hashed first so the length is not leaked either.
func ConstantTimeEqual(a, b string) bool {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// CheckCredentials validates a supplied username and password against the
// configured pair. The configured password may be plain text or an argon2id
// hash. Both fields are always evaluated.
func CheckCredentials(username, password, wantUser, wantPassword string) bool {
	userOK := ConstantTimeEqual(username, wantUser)

	var passOK bool
	if IsPasswordHash(wantPassword) {
		ok, err := VerifyPassword(password, wantPassword)
		passOK = err == nil && ok
	} else {
		passOK = ConstantTimeEqual(password, wantPassword)
	}

	return userOK && passOK
}
