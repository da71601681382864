package search

import (
	"encoding/base64"
	"encoding/json"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

const msgInvalidCursor = "Invalid cursor. Use cursor=* to start paging and pass back next_cursor unchanged."

// encodeCursor packs the sort values of the last hit into an opaque token.
func encodeCursor(values []any) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeCursor(token string) ([]any, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, queryerr.Pagination(msgInvalidCursor)
	}
	var values []any
	if err := json.Unmarshal(data, &values); err != nil || len(values) == 0 {
		return nil, queryerr.Pagination(msgInvalidCursor)
	}
	return values, nil
}
