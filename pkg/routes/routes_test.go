package routes_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/courier/pkg/openapi"
	"github.com/JaimeStill/courier/pkg/routes"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func testGroup() routes.Group {
	return routes.Group{
		Prefix: "/bundles",
		Tags:   []string{"Bundles"},
		Schemas: map[string]*openapi.Schema{
			"Bundle": {Type: "object"},
		},
		Routes: []routes.Route{
			{
				Method:  "GET",
				Pattern: "",
				Handler: ok,
				OpenAPI: &openapi.Operation{Summary: "List bundles"},
			},
			{
				Method:  "GET",
				Pattern: "/{id}",
				Handler: ok,
				OpenAPI: &openapi.Operation{Summary: "Find bundle", Tags: []string{"Detail"}},
			},
			{
				Method:  "DELETE",
				Pattern: "/{id}",
				Handler: ok,
				OpenAPI: &openapi.Operation{Summary: "Delete bundle"},
			},
			{Method: "GET", Pattern: "/internal", Handler: ok},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}/documents",
				Routes: []routes.Route{
					{
						Method:  "GET",
						Pattern: "",
						Handler: ok,
						OpenAPI: &openapi.Operation{Summary: "List documents"},
					},
				},
			},
		},
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, testGroup())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/bundles", http.StatusOK},
		{"GET", "/bundles/123", http.StatusOK},
		{"DELETE", "/bundles/123", http.StatusOK},
		{"GET", "/bundles/123/documents", http.StatusOK},
		{"POST", "/bundles/123", http.StatusMethodNotAllowed},
		{"GET", "/missing", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestDocument(t *testing.T) {
	spec := openapi.NewSpec("Test", "1.0.0")
	routes.Document(spec, "/api", testGroup())

	if _, ok := spec.Components.Schemas["Bundle"]; !ok {
		t.Error("group schema not merged into components")
	}
	if _, ok := spec.Paths["/api/bundles/internal"]; ok {
		t.Error("route without an operation should not be documented")
	}

	item, ok := spec.Paths["/api/bundles/{id}"]
	if !ok {
		t.Fatal("missing /api/bundles/{id}")
	}
	if item.Get == nil || item.Delete == nil {
		t.Fatal("expected get and delete operations on /api/bundles/{id}")
	}
	if item.Get.Tags[0] != "Detail" {
		t.Errorf("explicit tags overwritten: %v", item.Get.Tags)
	}
	if item.Delete.Tags[0] != "Bundles" {
		t.Errorf("group tags not applied: %v", item.Delete.Tags)
	}

	child, ok := spec.Paths["/api/bundles/{id}/documents"]
	if !ok || child.Get == nil {
		t.Fatal("missing child group operation")
	}
	if child.Get.Tags[0] != "Bundles" {
		t.Errorf("child group should inherit tags: %v", child.Get.Tags)
	}
}
