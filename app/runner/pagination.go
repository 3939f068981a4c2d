package runner

import (
	"github.com/winhowes/RemoteData/app/query"
	"github.com/winhowes/RemoteData/app/schema"
)

// Pagination types.
const (
	PaginationCursor       = "cursor"
	PaginationCursorSimple = "cursor_simple"
	PaginationOffset       = "offset"
	PaginationPage         = "page"
)

// DefaultPerPage applies when a query has no per-page input.
const DefaultPerPage = 10

func paginationType(in query.InputSchema) string {
	switch {
	case in.Count(query.InputCursor) > 0:
		return PaginationCursorSimple
	case in.Count(query.InputCursorNext) > 0 || in.Count(query.InputCursorPrevious) > 0:
		return PaginationCursor
	case in.Count(query.InputOffset) > 0:
		return PaginationOffset
	case in.Count(query.InputPage) > 0:
		return PaginationPage
	}
	return ""
}

func intVar(in query.InputSchema, vars query.Variables, t query.InputType, def int64) int64 {
	v, ok := in.Find(t)
	if !ok {
		return def
	}
	if i, ok := schema.ToInt(vars[v.Key]); ok {
		return int64(i)
	}
	return def
}

func withVars(vars query.Variables, set map[string]any, drop ...string) map[string]any {
	out := make(map[string]any, len(vars)+len(set))
	for k, v := range vars {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	for k, v := range set {
		out[k] = v
	}
	return out
}

// paginate reads the paging fields from the response root and computes
// the input variables for the next and previous pages. It returns nil for
// queries without paging inputs.
func paginate(q query.Query, vars query.Variables, data any, count int) (*Pagination, error) {
	in := q.InputSchema()
	typ := paginationType(in)
	if typ == "" {
		return nil, nil
	}
	p := &Pagination{Type: typ}
	ps := q.PaginationSchema()
	if ps != nil {
		fields, err := extract(data, ps.Fields)
		if err != nil {
			return nil, err
		}
		if v, ok := fields[query.PageTotalItems].Value.(int64); ok {
			p.TotalItems = &v
		}
		if v, ok := fields[query.PageHasNextPage].Value.(bool); ok {
			p.HasNextPage = &v
		}
		p.CursorNext, _ = fields[query.PageCursorNext].Value.(string)
		p.CursorPrevious, _ = fields[query.PageCursorPrevious].Value.(string)
	}

	var next, prev map[string]any
	switch typ {
	case PaginationCursorSimple:
		key, _ := in.Find(query.InputCursor)
		if p.CursorNext != "" {
			next = withVars(vars, map[string]any{key.Key: p.CursorNext})
		}
		if p.CursorPrevious != "" {
			prev = withVars(vars, map[string]any{key.Key: p.CursorPrevious})
		}
	case PaginationCursor:
		nk, hasNext := in.Find(query.InputCursorNext)
		pk, hasPrev := in.Find(query.InputCursorPrevious)
		if hasNext && p.CursorNext != "" {
			next = withVars(vars, map[string]any{nk.Key: p.CursorNext}, pk.Key)
		}
		if hasPrev && p.CursorPrevious != "" {
			prev = withVars(vars, map[string]any{pk.Key: p.CursorPrevious}, nk.Key)
		}
	case PaginationOffset:
		p.PerPage = intVar(in, vars, query.InputPerPage, DefaultPerPage)
		key, _ := in.Find(query.InputOffset)
		offset := intVar(in, vars, query.InputOffset, 0)
		if p.hasMore(offset+p.PerPage, count) {
			next = withVars(vars, map[string]any{key.Key: offset + p.PerPage})
		}
		if offset > 0 {
			prev = withVars(vars, map[string]any{key.Key: max(0, offset-p.PerPage)})
		}
	case PaginationPage:
		p.PerPage = intVar(in, vars, query.InputPerPage, DefaultPerPage)
		key, _ := in.Find(query.InputPage)
		page := max(intVar(in, vars, query.InputPage, 1), 1)
		if p.hasMore(page*p.PerPage, count) {
			next = withVars(vars, map[string]any{key.Key: page + 1})
		}
		if page > 1 {
			prev = withVars(vars, map[string]any{key.Key: page - 1})
		}
	}
	var err error
	if p.Next, err = canonical(next); err != nil {
		return nil, err
	}
	if p.Previous, err = canonical(prev); err != nil {
		return nil, err
	}
	return p, nil
}

// hasMore decides whether items beyond consumed exist, preferring the
// explicit flag, then the total, then whether this page was full.
func (p *Pagination) hasMore(consumed int64, count int) bool {
	switch {
	case p.HasNextPage != nil:
		return *p.HasNextPage
	case p.TotalItems != nil:
		return consumed < *p.TotalItems
	}
	return int64(count) >= p.PerPage
}
