package jsonapi

import (
	"net/url"
	"strconv"
)

// Pagination describes one page of a collection.
type Pagination struct {
	Total    int64  // Total number of items
	Page     int    // Current page number (1-based)
	PageSize int    // Items per page
	BaseURL  string // Base URL for generating links
}

// NewPagination creates a Pagination, clamping page and size to at least 1.
func NewPagination(total int64, page, pageSize int, baseURL string) *Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	return &Pagination{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		BaseURL:  baseURL,
	}
}

// TotalPages returns the number of pages; an empty collection has one.
func (p *Pagination) TotalPages() int {
	pages := int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
	if pages < 1 {
		pages = 1
	}
	return pages
}

func (p *Pagination) HasPrev() bool { return p.Page > 1 }
func (p *Pagination) HasNext() bool { return p.Page < p.TotalPages() }

// Links generates first/last/prev/next links. Nil without a BaseURL.
func (p *Pagination) Links() *Links {
	if p.BaseURL == "" {
		return nil
	}

	links := &Links{
		Self:  p.buildURL(p.Page),
		First: p.buildURL(1),
		Last:  p.buildURL(p.TotalPages()),
	}
	if p.HasPrev() {
		links.Prev = p.buildURL(p.Page - 1)
	}
	if p.HasNext() {
		links.Next = p.buildURL(p.Page + 1)
	}
	return links
}

// buildURL keeps the base URL's other query parameters (filters).
func (p *Pagination) buildURL(page int) string {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return p.BaseURL
	}

	q := u.Query()
	q.Del("page[number]")
	q.Del("page[size]")
	q.Del("page_size")
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(p.PageSize))
	u.RawQuery = q.Encode()

	return u.String()
}

// Meta returns pagination metadata.
func (p *Pagination) Meta() Meta {
	return Meta{
		"total":     p.Total,
		"page":      p.Page,
		"page_size": p.PageSize,
		"pages":     p.TotalPages(),
	}
}

// ParsePaginationParams reads the page number and size from the query.
// Accepted spellings are page/pageSize, page/page_size and the JSON:API
// page[number]/page[size]. Invalid values fall back to the defaults;
// the size is capped at maxPageSize.
func ParsePaginationParams(query url.Values, defaultPageSize, maxPageSize int) (page, pageSize int) {
	page = firstPositive(query, 1, "page[number]", "page")
	pageSize = firstPositive(query, defaultPageSize, "page[size]", "pageSize", "page_size")
	if maxPageSize > 0 && pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func firstPositive(query url.Values, fallback int, keys ...string) int {
	for _, k := range keys {
		if n, err := strconv.Atoi(query.Get(k)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
