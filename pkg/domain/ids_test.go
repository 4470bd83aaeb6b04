package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bidhub/pkg/domain-errors"
)

// TestParseUUID_Invariants validates the parsing invariant:
// IDs must be valid, non-empty, non-nil UUIDs.
func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		validUUID := uuid.New()
		id, err := ParseUserID(validUUID.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(validUUID), id)
	})

	t.Run("listing and record parsers share the invariant", func(t *testing.T) {
		_, err := ParseListingID(uuid.Nil.String())
		require.Error(t, err)
		_, err = ParseRecordID("garbage")
		require.Error(t, err)
	})
}

// TestParseID_SecurityInvariants validates trust-boundary parsing against
// hostile input.
func TestParseID_SecurityInvariants(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--"},
		{"Path traversal", "../../../etc/passwd"},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000"},
		{"Oversized input", strings.Repeat("a", 1000)},
		{"Trailing garbage", "550e8400-e29b-41d4-a716-446655440000x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.input)
			require.Error(t, err)
		})
	}
}

// TestJSONRoundTrip covers the explicit text marshalers; defined types do not
// inherit uuid.UUID's.
func TestJSONRoundTrip(t *testing.T) {
	original := NewListingID()

	raw, err := json.Marshal(original)
	require.NoError(t, err)
	assert.Equal(t, `"`+original.String()+`"`, string(raw))

	var decoded ListingID
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original, decoded)
}

func TestSubjectConversion(t *testing.T) {
	userID := NewUserID()
	listingID := NewListingID()

	assert.Equal(t, SubjectID(userID), userID.Subject())
	assert.Equal(t, SubjectID(listingID), listingID.Subject())
	assert.False(t, userID.Subject().IsZero())
}

func TestIsZero(t *testing.T) {
	assert.True(t, UserID{}.IsZero())
	assert.True(t, RecordID{}.IsZero())
	assert.False(t, NewUserID().IsZero())
	assert.False(t, NewBidID().IsZero())
}
