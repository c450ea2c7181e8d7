package pagination_test

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/JaimeStill/courier/pkg/pagination"
	"github.com/JaimeStill/courier/pkg/query"
)

var cfg = pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name         string
		in           pagination.PageRequest
		wantPage     int
		wantPageSize int
	}{
		{"zero values", pagination.PageRequest{}, 1, 20},
		{"negative page", pagination.PageRequest{Page: -3, PageSize: 10}, 1, 10},
		{"oversized", pagination.PageRequest{Page: 2, PageSize: 500}, 2, 100},
		{"valid", pagination.PageRequest{Page: 4, PageSize: 50}, 4, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			req.Normalize(cfg)
			if req.Page != tt.wantPage || req.PageSize != tt.wantPageSize {
				t.Errorf("got page=%d size=%d, want page=%d size=%d",
					req.Page, req.PageSize, tt.wantPage, tt.wantPageSize)
			}
		})
	}
}

func TestOffset(t *testing.T) {
	req := pagination.PageRequest{Page: 3, PageSize: 25}
	if got := req.Offset(); got != 50 {
		t.Errorf("Offset() = %d, want 50", got)
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	values := url.Values{
		"page":      {"2"},
		"page_size": {"15"},
		"search":    {"invoice"},
		"sort":      {"-CreatedAt,Name"},
	}

	req, err := pagination.PageRequestFromQuery(values, cfg)
	if err != nil {
		t.Fatalf("PageRequestFromQuery: %v", err)
	}

	if req.Page != 2 || req.PageSize != 15 {
		t.Errorf("page=%d size=%d", req.Page, req.PageSize)
	}
	if req.Search == nil || *req.Search != "invoice" {
		t.Errorf("search = %v", req.Search)
	}
	want := []query.SortField{{Field: "CreatedAt", Descending: true}, {Field: "Name"}}
	if len(req.Sort) != len(want) || req.Sort[0] != want[0] || req.Sort[1] != want[1] {
		t.Errorf("sort = %+v", req.Sort)
	}
}

func TestPageRequestFromQueryDefaults(t *testing.T) {
	req, err := pagination.PageRequestFromQuery(url.Values{}, cfg)
	if err != nil {
		t.Fatalf("PageRequestFromQuery: %v", err)
	}
	if req.Page != 1 || req.PageSize != 20 || req.Search != nil || req.Sort != nil {
		t.Errorf("unexpected defaults: %+v", req)
	}
}

func TestPageRequestFromQueryInvalid(t *testing.T) {
	for _, values := range []url.Values{
		{"page": {"two"}},
		{"page_size": {"1.5"}},
	} {
		t.Run(values.Encode(), func(t *testing.T) {
			_, err := pagination.PageRequestFromQuery(values, cfg)
			if !errors.Is(err, pagination.ErrInvalidPage) {
				t.Errorf("err = %v, want ErrInvalidPage", err)
			}
		})
	}
}

func TestSortFieldsUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []query.SortField
	}{
		{"string", `{"sort":"-Name"}`, []query.SortField{{Field: "Name", Descending: true}}},
		{"array", `{"sort":[{"Field":"Name"},{"Field":"CreatedAt","Descending":true}]}`,
			[]query.SortField{{Field: "Name"}, {Field: "CreatedAt", Descending: true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req pagination.PageRequest
			if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if len(req.Sort) != len(tt.want) {
				t.Fatalf("sort = %+v", req.Sort)
			}
			for i := range tt.want {
				if req.Sort[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, req.Sort[i], tt.want[i])
				}
			}
		})
	}

	var req pagination.PageRequest
	if err := json.Unmarshal([]byte(`{"sort":42}`), &req); err == nil {
		t.Error("expected error for numeric sort")
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"empty", 0, 20, 1},
		{"exact", 40, 20, 2},
		{"remainder", 41, 20, 3},
		{"zero page size", 10, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pagination.NewPageResult[string](nil, tt.total, 1, tt.pageSize)
			if r.TotalPages != tt.wantPages {
				t.Errorf("TotalPages = %d, want %d", r.TotalPages, tt.wantPages)
			}
			if r.Data == nil {
				t.Error("Data is nil")
			}
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		var c pagination.Config
		if err := c.Finalize(nil); err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if c.DefaultPageSize != 20 || c.MaxPageSize != 100 {
			t.Errorf("got %+v", c)
		}
	})

	t.Run("env", func(t *testing.T) {
		t.Setenv("TEST_PAGE_DEFAULT", "10")
		t.Setenv("TEST_PAGE_MAX", "30")
		var c pagination.Config
		err := c.Finalize(&pagination.ConfigEnv{
			DefaultPageSize: "TEST_PAGE_DEFAULT",
			MaxPageSize:     "TEST_PAGE_MAX",
		})
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if c.DefaultPageSize != 10 || c.MaxPageSize != 30 {
			t.Errorf("got %+v", c)
		}
	})

	t.Run("default exceeds max", func(t *testing.T) {
		c := pagination.Config{DefaultPageSize: 50, MaxPageSize: 10}
		if err := c.Finalize(nil); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestConfigMerge(t *testing.T) {
	c := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	c.Merge(&pagination.Config{MaxPageSize: 250})
	if c.DefaultPageSize != 20 || c.MaxPageSize != 250 {
		t.Errorf("got %+v", c)
	}
}
