package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DomainAccount is the domain prefix for account identity hashing.
// The version suffix leaves room for a future algorithm change.
const DomainAccount = "contract/account/v1"

// AccountIDLength is the length of a content-addressed account ID (SHA-256 hex).
const AccountIDLength = sha256.Size * 2

// hashWithDomain computes SHA256(domain + 0x00 + data) as lowercase hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// AccountID derives the account ID for an owner name.
//
// The owner is NFC-normalised first so that visually identical names typed
// with composed or decomposed characters map to the same account. The ID is
// an identifier, not a credential.
func AccountID(owner string) string {
	return hashWithDomain(DomainAccount, []byte(NormalizeOwner(owner)))
}

// NormalizeOwner returns the NFC form of an owner name, the form that is
// hashed and stored.
func NormalizeOwner(owner string) string {
	return norm.NFC.String(owner)
}

// IsAccountID reports whether s has the shape of a content-addressed ID.
// Legacy integer IDs return false.
func IsAccountID(s string) bool {
	if len(s) != AccountIDLength {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f')
	}) < 0
}
