package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/normalize"
)

const hashSeparator = "|"

// GenerateHash fingerprints a posting's normalized title, company and
// location. Postings that differ only in id, description or url share a hash.
func GenerateHash(p model.Posting) string {
	key := strings.Join([]string{
		normalize.NormalizeTitle(p.Title),
		normalize.NormalizeCompany(p.Company),
		normalize.NormalizeLocation(p.Location),
	}, hashSeparator)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ShortHash truncates a content hash for logs and display. Index keys always
// use the full hash.
func ShortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16]
}
