package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

// FuzzParseUserID checks the parser never panics and only ever returns an ID
// that survives a round trip through its string form.
func FuzzParseUserID(f *testing.F) {
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add(uuid.Nil.String())
	f.Add("")
	f.Add("not-a-uuid")
	f.Add("550E8400-E29B-41D4-A716-446655440000")
	f.Add(strings.Repeat("0", 36))
	f.Add("'; DROP TABLE users;--")

	f.Fuzz(func(t *testing.T, s string) {
		id, err := ParseUserID(s)
		if err != nil {
			return
		}
		if id.IsZero() {
			t.Fatalf("accepted input %q produced a zero ID", s)
		}
		again, err := ParseUserID(id.String())
		if err != nil {
			t.Fatalf("canonical form %q did not re-parse: %v", id.String(), err)
		}
		if again != id {
			t.Fatalf("round trip changed ID: %v != %v", again, id)
		}
	})
}
