package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// HashBytes generates a SHA256 hash of bytes.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Settings are the analysis inputs besides the file content that change
// its result.
type Settings struct {
	Rules          []string
	MaxSteps       int
	MaxPointVisits int
}

// String returns a canonical form; rule order does not matter.
func (s Settings) String() string {
	ids := append([]string(nil), s.Rules...)
	sort.Strings(ids)
	return strings.Join(ids, ",") + "|" + strconv.Itoa(s.MaxSteps) + "|" + strconv.Itoa(s.MaxPointVisits)
}

// Key returns the cache key of a file's content analyzed with s.
func Key(content []byte, s Settings) string {
	return HashBytes([]byte(HashBytes(content) + "|" + s.String()))
}
