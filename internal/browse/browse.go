// Package browse is the read path of a table view: it turns the view's
// sort, filter, search and page state into SELECT/COUNT queries and
// normalizes the rows that come back.
package browse

import (
	"context"

	"github.com/koustreak/pgedit/internal/database"
	"github.com/koustreak/pgedit/internal/errs"
	"github.com/koustreak/pgedit/internal/schema"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// Sort is the active ORDER BY of a view.
type Sort struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// ViewState is everything the read path needs besides metadata.
type ViewState struct {
	Page     int               `json:"page"`
	PageSize int               `json:"pageSize"`
	Sort     *Sort             `json:"sort,omitempty"`
	Filters  map[string]string `json:"filters,omitempty"`
	Search   string            `json:"search,omitempty"`
}

// EffectivePageSize clamps PageSize into 1..MaxPageSize, defaulting to
// DefaultPageSize.
func (s ViewState) EffectivePageSize() int {
	switch {
	case s.PageSize <= 0:
		return DefaultPageSize
	case s.PageSize > MaxPageSize:
		return MaxPageSize
	}
	return s.PageSize
}

// Page is one loaded page of rows.
type Page struct {
	Rows     []map[string]any `json:"rows"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// BuildPageQuery composes the page and count queries for st.
func BuildPageQuery(md *schema.TableMetadata, st ViewState) (page Query, count Query, err error) {
	size := st.EffectivePageSize()
	pageNo := st.Page
	if pageNo < 0 {
		pageNo = 0
	}

	b := NewSelect(md).
		Filters(st.Filters).
		Search(st.Search).
		Limit(size).
		Offset(pageNo * size)
	if st.Sort != nil {
		b.OrderBy(st.Sort.Column, st.Sort.Direction)
	}
	return b.Build()
}

// LoadPage runs the page and count queries and normalizes the rows.
func LoadPage(ctx context.Context, q database.Querier, md *schema.TableMetadata, st ViewState) (*Page, error) {
	pageQ, countQ, err := BuildPageQuery(md, st)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, pageQ.SQL, pageQ.Args...)
	if err != nil {
		return nil, err
	}
	raw, err := database.ScanMaps(rows)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := q.QueryRow(ctx, countQ.SQL, countQ.Args...).Scan(&total); err != nil {
		return nil, errs.Wrap(errs.KindOf(err), "count rows", err)
	}

	out := make([]map[string]any, len(raw))
	for i, r := range raw {
		out[i] = NormalizeRow(md, r)
	}

	pageNo := st.Page
	if pageNo < 0 {
		pageNo = 0
	}
	return &Page{Rows: out, Total: total, Page: pageNo, PageSize: st.EffectivePageSize()}, nil
}
