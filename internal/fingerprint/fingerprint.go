// Package fingerprint hashes question content for change detection.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/conorfennell/chopper/internal/domain"
)

// Normalize joins the question's text fields after trimming whitespace and
// normalizing line endings. Case is preserved: a fixed typo is a change.
func Normalize(q domain.Question) string {
	normalizePart := func(part string) string {
		p := strings.TrimSpace(part)
		return strings.ReplaceAll(p, "\r\n", "\n")
	}

	// A separator that cannot appear after normalization keeps fields apart.
	return strings.Join([]string{
		normalizePart(q.Chapter),
		normalizePart(q.Section),
		normalizePart(q.SubTopic),
		normalizePart(q.Content),
		normalizePart(q.Answer),
	}, "\x1f")
}

// Question returns the SHA-256 of the normalized text and review state of q.
func Question(q domain.Question) string {
	sum := sha256.Sum256([]byte(entry(q)))
	return hex.EncodeToString(sum[:])
}

// Snapshot returns one hash for an ordered list of questions, suitable as an
// HTTP entity tag.
func Snapshot(qs []domain.Question) string {
	h := sha256.New()
	for _, q := range qs {
		h.Write([]byte(entry(q)))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func entry(q domain.Question) string {
	status := "-"
	if q.Status != nil {
		status = q.Status.String()
	}
	return fmt.Sprintf("%d\x1f%s\x1f%t\x1f%s", q.ID, Normalize(q), q.IsAnswered, status)
}
