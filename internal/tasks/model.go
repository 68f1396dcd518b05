package tasks

import (
	"bytes"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

const MaxTitleLen = 500

// datePattern is fixed-width YYYY-MM-DD with month and day ranges checked
// lexically. Calendar validity is not enforced: 2024-02-31 passes.
var datePattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`)

var (
	ErrInvalidTitle     = errors.New("invalid title")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidCompleted = errors.New("invalid completed")
	ErrInvalidRange     = errors.New("invalid range")
)

type Task struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Completed Flag   `json:"completed"`
}

// Flag is a completion bit. It is written as 0/1 and read from
// true/false, 0/1 or their quoted forms.
type Flag bool

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte("1"), nil
	}
	return []byte("0"), nil
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	switch string(bytes.Trim(b, `"`)) {
	case "true", "1":
		*f = true
	case "false", "0":
		*f = false
	default:
		return ErrInvalidCompleted
	}
	return nil
}

// ValidDate reports whether s has the stored YYYY-MM-DD shape.
func ValidDate(s string) bool {
	return datePattern.MatchString(s)
}

// NormalizeTitle trims s and checks it is non-empty and at most 500 characters.
func NormalizeTitle(s string) (string, error) {
	t := strings.TrimSpace(s)
	if t == "" || utf8.RuneCountInString(t) > MaxTitleLen {
		return "", ErrInvalidTitle
	}
	return t, nil
}
