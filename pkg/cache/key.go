package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pario-ai/chorus/pkg/models"
	"golang.org/x/text/unicode/norm"
)

// Key derives the cache key for a request. Prompts that differ only in
// Unicode normalization form or whitespace runs share a key.
func Key(domain models.Domain, prompt string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte("::"))
	h.Write([]byte(NormalizePrompt(prompt)))
	return "prompt:" + string(domain) + ":" + hex.EncodeToString(h.Sum(nil))
}

// NormalizePrompt applies NFKC and collapses whitespace.
func NormalizePrompt(prompt string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(prompt)), " ")
}
