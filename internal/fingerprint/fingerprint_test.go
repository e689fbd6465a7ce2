package fingerprint

import (
	"testing"

	"github.com/conorfennell/chopper/internal/domain"
)

func TestNormalize(t *testing.T) {
	q := domain.Question{
		Chapter:  " Basics ",
		Section:  "Components",
		SubTopic: "Activity",
		Content:  "  What is an Activity? \r\n",
		Answer:   "A screen.\r\nWith a lifecycle.",
	}
	expected := "Basics\x1fComponents\x1fActivity\x1fWhat is an Activity?\x1fA screen.\nWith a lifecycle."
	if got := Normalize(q); got != expected {
		t.Errorf("Expected normalized string to be %q, but got %q", expected, got)
	}
}

func TestQuestion(t *testing.T) {
	base := domain.Question{ID: 1, Chapter: "A", Section: "S", SubTopic: "T", Content: "Q", Answer: "A"}

	t.Run("hash is deterministic", func(t *testing.T) {
		if Question(base) != Question(base) {
			t.Error("Expected hashes for identical questions to be the same")
		}
	})

	t.Run("whitespace does not change the hash", func(t *testing.T) {
		padded := base
		padded.Content = "  Q\r\n"
		if Question(base) != Question(padded) {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("status changes the hash", func(t *testing.T) {
		rated := base
		rated.Status = domain.StatusPtr(domain.Known)
		if Question(base) == Question(rated) {
			t.Error("Expected a rated question to hash differently")
		}
	})

	t.Run("fields do not bleed into each other", func(t *testing.T) {
		a := domain.Question{ID: 1, Content: "ab", Answer: "c"}
		b := domain.Question{ID: 1, Content: "a", Answer: "bc"}
		if Question(a) == Question(b) {
			t.Error("Expected different field splits to hash differently")
		}
	})
}

func TestSnapshot(t *testing.T) {
	q1 := domain.Question{ID: 1, Content: "one"}
	q2 := domain.Question{ID: 2, Content: "two"}

	if Snapshot([]domain.Question{q1, q2}) == Snapshot([]domain.Question{q2, q1}) {
		t.Error("Expected order to change the snapshot hash")
	}
	if Snapshot(nil) != Snapshot([]domain.Question{}) {
		t.Error("Expected empty snapshots to hash the same")
	}
}
