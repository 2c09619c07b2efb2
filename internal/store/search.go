package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvstore/internal/core"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern turns a search term into an ILIKE substring pattern. LIKE
// wildcards in the term match literally; queries must use ESCAPE '\'.
func LikePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// DecodeFields decodes a stored JSON field map, keeping integers as int64.
func DecodeFields(raw []byte) (core.Fields, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var f core.Fields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode row data: %w", err)
	}
	if f == nil {
		f = core.Fields{}
	}
	return core.NormalizeNumbers(f), nil
}
