package web

//go:generate templ generate -f docs.templ

import (
	"net/http"

	"github.com/a-h/templ"
)

// endpoint is one row of the docs route table.
type endpoint struct {
	Method string
	Path   string
	About  string
}

var endpoints = []endpoint{
	{"GET", "/", "Service status"},
	{"GET", "/health", "Run slots, casters and wired backends"},
	{"GET", "/api/providers", "Built-in providers and their canonical fields"},
	{"POST", "/api/normalize", "Normalize a CSV, XLSX or PDF (raw body or multipart \"file\")"},
	{"POST", "/api/normalize/url", "Fetch {\"file_url\"} and normalize it"},
	{"POST", "/api/classify", "Tag a JSON array of records with a provider"},
	{"POST", "/api/proxy/download", "Save {\"file_url\"} to the download directory"},
	{"GET", "/api/schemas", "List built-in and dynamic schemas"},
	{"POST", "/api/schemas", "Add or replace dynamic schemas"},
	{"DELETE", "/api/schemas/{name}", "Remove a dynamic schema"},
	{"GET", "/api/runs", "Recent normalization runs"},
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	page := docsPage(providerList(), s.schemas.List(), s.cfg.Server.DocsDir != "")
	templ.Handler(page).ServeHTTP(w, r)
}
