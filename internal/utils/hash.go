package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

const tfnHashIterations = 4096

// HashTaxNumber derives a deterministic one-way digest of a tax file number.
// The digest, not the number, is what gets persisted; determinism is what
// lets the duplicate-registration guard query by digest. The pepper is a
// server-side secret so the digest cannot be brute-forced from the
// identifier's small keyspace alone.
func HashTaxNumber(taxNumber, pepper string) string {
	key := pbkdf2.Key([]byte(taxNumber), []byte(pepper), tfnHashIterations, 32, sha256.New)
	return hex.EncodeToString(key)
}
