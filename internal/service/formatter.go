package service

import (
	"github.com/teresa-solution/directory-service/internal/model"
	"github.com/teresa-solution/directory-service/internal/source"
)

// ColumnTypeNumber marks the display columns holding a dialable number.
const ColumnTypeNumber = "number"

// Formatted is the tabular rendering of query results through a display.
type Formatted struct {
	ColumnHeaders []*string         `json:"column_headers"`
	ColumnTypes   []*string         `json:"column_types"`
	Results       []FormattedResult `json:"results"`
}

// FormattedResult is one row of a formatted response.
type FormattedResult struct {
	ColumnValues []any            `json:"column_values"`
	Relations    source.Relations `json:"relations"`
	Source       string           `json:"source"`
	Numbers      []NumberEntry    `json:"numbers,omitempty"`
}

// NumberEntry is a number of a row with its display name, rendered from the
// number_display template of its column.
type NumberEntry struct {
	Number  string `json:"number"`
	Display string `json:"display"`
}

// FavoriteSet holds the favorite contact ids of a user per source name.
type FavoriteSet map[string]map[string]struct{}

func NewFavoriteSet(favorites []model.Favorite) FavoriteSet {
	set := make(FavoriteSet)
	for _, f := range favorites {
		if set[f.SourceName] == nil {
			set[f.SourceName] = make(map[string]struct{})
		}
		set[f.SourceName][f.ContactID] = struct{}{}
	}
	return set
}

// Contains reports whether the result is a favorite.
func (s FavoriteSet) Contains(r source.Result) bool {
	if r.Relations.SourceEntryID == nil {
		return false
	}
	_, ok := s[r.SourceName][*r.Relations.SourceEntryID]
	return ok
}

// Format projects results onto the columns of a display. A nil display
// yields rows without columns.
func Format(display *model.Display, results []source.Result, favorites FavoriteSet) Formatted {
	var columns []model.DisplayColumn
	if display != nil {
		columns = display.Columns
	}

	out := Formatted{
		ColumnHeaders: make([]*string, 0, len(columns)),
		ColumnTypes:   make([]*string, 0, len(columns)),
		Results:       make([]FormattedResult, 0, len(results)),
	}
	for _, c := range columns {
		out.ColumnHeaders = append(out.ColumnHeaders, c.Title)
		out.ColumnTypes = append(out.ColumnTypes, c.Type)
	}

	for _, r := range results {
		values := make(map[string]any, len(r.Fields)+2)
		for k, v := range r.Fields {
			values[k] = v
		}
		for _, c := range columns {
			switch columnType(c) {
			case model.ColumnTypeFavorite:
				values[c.Field] = favorites.Contains(r)
			case model.ColumnTypePersonal:
				values[c.Field] = r.IsPersonal
			}
		}

		row := FormattedResult{
			ColumnValues: make([]any, 0, len(columns)),
			Relations:    r.Relations,
			Source:       r.SourceName,
		}
		for _, c := range columns {
			v, ok := values[c.Field]
			if !ok && c.Default != nil {
				v = *c.Default
			}
			row.ColumnValues = append(row.ColumnValues, v)

			if columnType(c) == ColumnTypeNumber && r.Fields[c.Field] != "" {
				row.Numbers = append(row.Numbers, numberEntry(c, r.Fields))
			}
		}
		out.Results = append(out.Results, row)
	}
	return out
}

func columnType(c model.DisplayColumn) string {
	if c.Type == nil {
		return ""
	}
	return *c.Type
}

func numberEntry(c model.DisplayColumn, fields map[string]string) NumberEntry {
	number := fields[c.Field]
	display := number
	if c.NumberDisplay != nil && *c.NumberDisplay != "" {
		display = source.Format(*c.NumberDisplay, fields)
	}
	return NumberEntry{Number: number, Display: display}
}
