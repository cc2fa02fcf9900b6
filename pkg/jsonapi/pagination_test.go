package jsonapi

import (
	"net/url"
	"testing"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(100, 0, -1, "/logs")
	if p.Page != 1 {
		t.Errorf("Page = %d, want 1", p.Page)
	}
	if p.PageSize != 1 {
		t.Errorf("PageSize = %d, want 1", p.PageSize)
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		pageSize  int
		wantPages int
	}{
		{"zero total returns 1", 0, 10, 1},
		{"exact division", 100, 10, 10},
		{"remainder rounds up", 101, 10, 11},
		{"single page", 5, 20, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.total, 1, tt.pageSize, "")
			if got := p.TotalPages(); got != tt.wantPages {
				t.Errorf("TotalPages() = %d, want %d", got, tt.wantPages)
			}
		})
	}
}

func TestLinks(t *testing.T) {
	t.Run("middle page has prev and next", func(t *testing.T) {
		p := NewPagination(50, 2, 10, "/api/usage-monitor/logs?from=2026-01-01")
		links := p.Links()

		next, err := url.Parse(links.Next)
		if err != nil {
			t.Fatalf("parse next: %v", err)
		}
		q := next.Query()
		if q.Get("page") != "3" || q.Get("pageSize") != "10" {
			t.Errorf("next = %s, want page=3&pageSize=10", links.Next)
		}
		if q.Get("from") != "2026-01-01" {
			t.Errorf("next dropped the filter: %s", links.Next)
		}
		if links.Prev == "" {
			t.Error("Prev should be set on page 2")
		}
	})

	t.Run("last page has no next", func(t *testing.T) {
		links := NewPagination(50, 5, 10, "/logs").Links()
		if links.Next != "" {
			t.Errorf("Next = %q, want empty", links.Next)
		}
	})

	t.Run("no base URL means no links", func(t *testing.T) {
		if links := NewPagination(50, 1, 10, "").Links(); links != nil {
			t.Errorf("Links() = %+v, want nil", links)
		}
	})
}

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"defaults", "", 1, 20},
		{"camel case", "page=3&pageSize=50", 3, 50},
		{"snake case", "page=2&page_size=5", 2, 5},
		{"json api style", "page[number]=4&page[size]=15", 4, 15},
		{"invalid values fall back", "page=zero&pageSize=-3", 1, 20},
		{"capped", "pageSize=1000", 1, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			page, size := ParsePaginationParams(q, 20, 100)
			if page != tt.wantPage || size != tt.wantPageSize {
				t.Errorf("ParsePaginationParams(%q) = %d, %d; want %d, %d", tt.query, page, size, tt.wantPage, tt.wantPageSize)
			}
		})
	}
}

func TestPaginationMeta(t *testing.T) {
	m := NewPagination(45, 2, 20, "").Meta()
	if m["total"] != int64(45) || m["pages"] != 3 || m["page_size"] != 20 {
		t.Errorf("Meta() = %v", m)
	}
}
