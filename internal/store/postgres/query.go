package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// listQuery appends time filters on timeCol, ordering and pagination from opts
// to base. base must already end in a WHERE clause whose parameters are args.
func listQuery(base string, args []any, timeCol, orderBy string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		fmt.Fprintf(&b, " AND %s >= %s", timeCol, bind(*opts.Since))
	}
	if opts.Until != nil {
		fmt.Fprintf(&b, " AND %s <= %s", timeCol, bind(*opts.Until))
	}
	b.WriteString(" ORDER BY " + orderBy)
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + bind(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + bind(opts.Offset))
	}
	return b.String(), args
}
