package services

import (
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
)

// textOrNull maps an empty string to SQL NULL. Events omit fields they do not
// carry; NULL keeps "absent" distinguishable from an empty value.
func textOrNull(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func mustMarshalMetadata(metadata map[string]string) []byte {
	// Marshaling a map[string]string cannot fail.
	b, _ := json.Marshal(metadata)
	return b
}
