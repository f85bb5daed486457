package store

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

// queryArgs collects positional query arguments.
type queryArgs []any

// add appends v and returns its placeholder.
func (a *queryArgs) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}

// tenantFilter returns the predicate restricting column to the tenants of
// scope. It returns false for the empty scope, in which case nothing can
// match and the query must not run.
func tenantFilter(column string, scope model.TenantScope, args *queryArgs) (string, bool) {
	if scope.Unrestricted() {
		return "TRUE", true
	}
	if scope.Empty() {
		return "", false
	}
	return column + " = ANY(" + args.add(scope.UUIDs()) + ")", true
}

// phonebookKeyFilter returns the predicate selecting the phonebook aliased
// as alias.
func phonebookKeyFilter(alias string, key model.PhonebookKey, args *queryArgs) (string, bool) {
	if id, ok := key.ID(); ok {
		return alias + ".id = " + args.add(id), true
	}
	if uuid, ok := key.UUID(); ok && uuid != "" {
		return alias + ".uuid = " + args.add(uuid), true
	}
	return "", false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern returns the ILIKE pattern matching values containing term.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

// orderBy builds the ORDER BY clause of a list query. columns maps the
// accepted order names to their SQL column, def is used when order is empty.
func orderBy(alias string, params model.ListParams, columns map[string]string, def string) (string, error) {
	order := params.Order
	if order == "" {
		order = def
	}
	column, ok := columns[order]
	if !ok {
		return "", apperrors.ErrInvalidArgument.Msg(fmt.Sprintf("order: unknown column %q", order))
	}
	direction, err := sqlDirection(params.Direction)
	if err != nil {
		return "", err
	}
	if alias != "" {
		alias += "."
	}
	return "ORDER BY " + alias + pq.QuoteIdentifier(column) + " " + direction, nil
}

func sqlDirection(direction string) (string, error) {
	switch direction {
	case "", model.Ascending:
		return "ASC", nil
	case model.Descending:
		return "DESC", nil
	default:
		return "", apperrors.ErrInvalidArgument.Msg(fmt.Sprintf("direction: unknown direction %q", direction))
	}
}

// paginate returns the LIMIT and OFFSET clauses of params.
func paginate(params model.ListParams, args *queryArgs) string {
	var b strings.Builder
	if params.Limit > 0 {
		b.WriteString(" LIMIT " + args.add(params.Limit))
	}
	if params.Offset > 0 {
		b.WriteString(" OFFSET " + args.add(params.Offset))
	}
	return b.String()
}
