package web

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/crmkit/importer/internal/core"
	"github.com/crmkit/importer/internal/schema"
	"github.com/go-chi/chi/v5"
)

// ownerHeader carries the acting owner's identifier. Imports and exports
// operate within a single owner's record set.
const ownerHeader = "X-Owner-ID"

// handleHealth reports service liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleListKinds returns the importable record kinds and their columns.
func (s *Server) handleListKinds(w http.ResponseWriter, r *http.Request) {
	type kindInfo struct {
		Kind     string   `json:"kind"`
		KeyField string   `json:"keyField"`
		Columns  []string `json:"columns"`
	}

	kinds := schema.Kinds()
	out := make([]kindInfo, 0, len(kinds))
	for _, k := range kinds {
		sch, _ := schema.ByKind(k)
		out = append(out, kindInfo{Kind: sch.Kind, KeyField: sch.KeyField, Columns: sch.Headers()})
	}
	writeJSON(w, out)
}

// handleTemplate serves a downloadable import template for a kind.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	includeExamples := queryBool(r, "examples", true)
	delimiter := parseDelimiter(r.URL.Query().Get("delimiter"))

	content, err := s.service.Template(kind, includeExamples, delimiter)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, kind))
	io.WriteString(w, content)
}

// handleExport streams an owner's records of a kind as a CSV download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "missing "+ownerHeader+" header")
		return
	}

	opts := core.DefaultExportOptions()
	opts.IncludeHeaders = queryBool(r, "headers", true)
	opts.DateFormat = r.URL.Query().Get("dateFormat")
	opts.Delimiter = parseDelimiter(r.URL.Query().Get("delimiter"))
	if fields := r.URL.Query().Get("fields"); fields != "" {
		for _, f := range strings.Split(fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				opts.Fields = append(opts.Fields, f)
			}
		}
	}
	opts.Filters = parseFilters(r)

	result, err := s.service.Export(r.Context(), ownerID, kind, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	io.WriteString(w, result.Content)
}

// handlePreview runs the validation pipeline without persisting anything
// and returns the full dry-run report.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")

	data, err := s.readCSVPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.service.Preview(r.Context(), kind, data, parseDelimiter(requestValue(r, "delimiter")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, report)
}

// handleImport validates and persists an uploaded document for the owner
// identified by the X-Owner-ID header.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	kind := chi.URLParam(r, "kind")
	ownerID := r.Header.Get(ownerHeader)
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "missing "+ownerHeader+" header")
		return
	}

	data, err := s.readCSVPayload(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := core.DefaultImportOptions()
	opts.SkipDuplicates = valueBool(r, "skipDuplicates", opts.SkipDuplicates)
	opts.UpdateExisting = valueBool(r, "updateExisting", opts.UpdateExisting)
	opts.ValidateOnly = valueBool(r, "validateOnly", opts.ValidateOnly)
	opts.Delimiter = parseDelimiter(requestValue(r, "delimiter"))
	opts.BatchSize = s.cfg.Import.BatchSize
	if v := requestValue(r, "batchSize"); v != "" {
		if n, convErr := strconv.Atoi(v); convErr == nil && n > 0 {
			opts.BatchSize = n
		}
	}

	report, err := s.service.Import(r.Context(), ownerID, kind, data, opts)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, report)
}

// readCSVPayload extracts the CSV bytes from either a multipart form field
// named "file" or the raw request body, capped at the configured size.
func (s *Server) readCSVPayload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return nil, fmt.Errorf("file too large or invalid form")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("no file provided")
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read file")
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body")
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	return data, nil
}

// requestValue looks up an option in the multipart form first, then the
// query string. Raw-body requests can only use query parameters.
func requestValue(r *http.Request, name string) string {
	if r.MultipartForm != nil {
		if vals := r.MultipartForm.Value[name]; len(vals) > 0 {
			return vals[0]
		}
	}
	return r.URL.Query().Get(name)
}

// valueBool parses a boolean option with a default for absent values.
func valueBool(r *http.Request, name string, defaultVal bool) bool {
	v := requestValue(r, name)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// queryBool parses a boolean query parameter with a default.
func queryBool(r *http.Request, name string, defaultVal bool) bool {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// parseFilters extracts filter[field]=value pairs from the query string.
func parseFilters(r *http.Request) map[string]string {
	var filters map[string]string
	for key, values := range r.URL.Query() {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		name := key[len("filter[") : len(key)-1]
		if name == "" || len(values) == 0 {
			continue
		}
		if filters == nil {
			filters = make(map[string]string)
		}
		filters[name] = values[0]
	}
	return filters
}

// parseDelimiter maps a delimiter option onto its rune. Unset values
// default to comma.
func parseDelimiter(v string) rune {
	switch strings.ToLower(v) {
	case "", ",", "comma":
		return ','
	case ";", "semicolon":
		return ';'
	case "\t", "tab":
		return '\t'
	case "|", "pipe":
		return '|'
	}
	return []rune(v)[0]
}
