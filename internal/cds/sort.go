// Package cds implements the ContentDirectory control actions: Browse,
// Search, the capability getters, and the ConnectionManager minimum.
package cds

import (
	"fmt"
	"strings"
)

// sortFields maps SortCriteria field names to catalog columns through the
// o/d query aliases. originalTrackNumber orders by disc then track.
var sortFields = map[string][]string{
	"upnp:class":               {"o.class"},
	"dc:title":                 {"d.title"},
	"dc:date":                  {"d.date"},
	"upnp:album":               {"d.album"},
	"upnp:originalTrackNumber": {"d.disc", "d.track"},
}

// TranslateSort converts a SortCriteria string (comma list of ±field) into
// an ORDER BY fragment. An empty criteria returns "" so the store applies
// its title default. When strict is set a missing direction prefix is an
// error; lenient clients default to ascending. Unless dc:title appears in
// the list, a title tiebreaker is appended.
func TranslateSort(criteria string, strict bool) (string, error) {
	criteria = strings.TrimSpace(criteria)
	if criteria == "" {
		return "", nil
	}

	var (
		parts     []string
		titleSeen bool
	)
	for _, field := range strings.Split(criteria, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			return "", fmt.Errorf("empty sort field")
		}

		dir := "ASC"
		switch field[0] {
		case '+':
			field = field[1:]
		case '-':
			dir = "DESC"
			field = field[1:]
		default:
			if strict {
				return "", fmt.Errorf("sort field %q has no direction prefix", field)
			}
		}

		cols, ok := sortFields[field]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", field)
		}
		if field == "dc:title" {
			titleSeen = true
		}
		for _, col := range cols {
			parts = append(parts, col+" "+dir)
		}
	}

	if !titleSeen {
		parts = append(parts, "d.title ASC")
	}
	return strings.Join(parts, ", "), nil
}
