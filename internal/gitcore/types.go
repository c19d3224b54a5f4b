package gitcore

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Hash represents a Git object hash.
type Hash string

// NewHash creates a Hash from a hexadecimal string, validating its format.
func NewHash(s string) (Hash, error) {
	if len(s) != 40 {
		return "", fmt.Errorf("invalid hash length: %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", fmt.Errorf("invalid hash: %w", err)
	}
	return Hash(s), nil
}

// NewHashFromBytes creates a Hash from a 20-byte array.
func NewHashFromBytes(b [20]byte) (Hash, error) {
	return NewHash(hex.EncodeToString(b[:]))
}

// IsValid checks if the hash has a valid format (40 hex characters for SHA-1).
func (h Hash) IsValid() bool {
	if len(string(h)) != 40 {
		return false
	}
	_, err := hex.DecodeString(string(h))
	return err == nil
}

// Short returns the abbreviated 7 character form used in listings.
func (h Hash) Short() string {
	if len(h) <= 7 {
		return string(h)
	}
	return string(h[:7])
}

// Signature represents a Git author or committer signature with name, email, and timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

var signatureSplit = regexp.MustCompile("[<>]")

// NewSignature parses a signature line in the format "Name <email> timestamp [tz]".
func NewSignature(signLine string) (Signature, error) {
	parts := signatureSplit.Split(signLine, -1)
	if len(parts) != 3 {
		return Signature{}, fmt.Errorf("invalid signature line: %q", signLine)
	}

	name := strings.TrimSpace(parts[0])
	email := strings.TrimSpace(parts[1])

	timeParts := strings.Fields(parts[2])
	if len(timeParts) < 1 {
		return Signature{}, fmt.Errorf("invalid signature line: %q", signLine)
	}
	unixTime, err := strconv.ParseInt(timeParts[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid signature timestamp %q: %w", timeParts[0], err)
	}

	when := time.Unix(unixTime, 0)
	if len(timeParts) > 1 {
		if loc, ok := parseTimezone(timeParts[1]); ok {
			when = when.In(loc)
		}
	}

	return Signature{
		Name:  name,
		Email: email,
		When:  when,
	}, nil
}

// parseTimezone converts git's "+hhmm" offset into a fixed zone.
func parseTimezone(tz string) (*time.Location, bool) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, false
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return nil, false
	}
	minutes, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return nil, false
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), true
}

// CommitRecord is one entry of a repository log.
type CommitRecord struct {
	Hash    Hash
	Parents []Hash
	Author  Signature
	Subject string
	Body    string
	Refs    []string
}

// IsMerge reports whether the commit has more than one parent.
func (c CommitRecord) IsMerge() bool {
	return len(c.Parents) > 1
}

// LogOptions controls which commits Log returns.
type LogOptions struct {
	IncludeMerges bool
	// MaxCount limits the number of records; zero means unlimited.
	MaxCount int
}

// ShowOptions controls the diff Show renders.
type ShowOptions struct {
	// FirstParent restricts a merge commit's diff to its first parent.
	FirstParent bool
}
