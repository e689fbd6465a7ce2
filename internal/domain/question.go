package domain

import "fmt"

// Status is the user's recall confidence for a question.
// The integer values are the codes persisted in the store and used in import files.
type Status int

const (
	Forgot Status = iota
	Vague
	Known
	Mastered
)

var statusNames = [...]string{"FORGOT", "VAGUE", "KNOWN", "MASTERED"}

// StatusFromCode maps a stored code to a Status. Unknown codes read as Forgot.
func StatusFromCode(code int) Status {
	s := Status(code)
	if !s.Valid() {
		return Forgot
	}
	return s
}

// ParseStatus accepts either a status name (case-sensitive, as in String) or its integer code.
func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if v == name {
			return Status(i), nil
		}
	}
	var code int
	if _, err := fmt.Sscanf(v, "%d", &code); err == nil && Status(code).Valid() {
		return Status(code), nil
	}
	return Forgot, fmt.Errorf("unknown status %q", v)
}

// Valid reports whether s is one of the four known values.
func (s Status) Valid() bool {
	return s >= Forgot && s <= Mastered
}

// Correct reports whether choosing s counts towards a review session's quota.
func (s Status) Correct() bool {
	return s == Known || s == Mastered
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText lets statuses render by name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Question is a single study card. IDs come from the import source.
type Question struct {
	ID         int    `json:"id"`
	Chapter    string `json:"chapter"`
	Section    string `json:"section"`
	SubTopic   string `json:"subTopic"`
	Content    string `json:"content"`
	Answer     string `json:"answer"`
	IsAnswered bool   `json:"isAnswered"`
	// Status is nil until the user has rated the question.
	Status *Status `json:"status,omitempty"`
}

// CurrentStatus returns the question's status, treating an absent status as Forgot.
func (q Question) CurrentStatus() Status {
	if q.Status == nil {
		return Forgot
	}
	return *q.Status
}

// StatusPtr is a helper for building questions with a set status.
func StatusPtr(s Status) *Status {
	return &s
}
