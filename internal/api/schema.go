package api

import (
	"net/http"
	"strings"
)

type schemaResponse struct {
	Database    string   `json:"database"`
	Tables      []string `json:"tables"`
	Fields      string   `json:"fields"`
	ForeignKeys string   `json:"foreign_keys"`
	PrimaryKeys string   `json:"primary_keys"`
}

// handleSchema exposes the exact schema renderings the prompts see, which
// makes prompt issues debuggable without reading pipeline logs.
func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema introspection is not configured", false, nil)
		return
	}

	database := strings.TrimSpace(r.URL.Query().Get("database"))
	if database == "" {
		database = deps.DefaultDatabase
	}

	tables, err := deps.Schema.Tables(r.Context(), database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "schema introspection failed", true, map[string]any{"details": err.Error()})
		return
	}
	fields, err := deps.Schema.Fields(r.Context(), database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "schema introspection failed", true, map[string]any{"details": err.Error()})
		return
	}
	foreignKeys, err := deps.Schema.ForeignKeys(r.Context(), database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "schema introspection failed", true, map[string]any{"details": err.Error()})
		return
	}
	primaryKeys, err := deps.Schema.PrimaryKeys(r.Context(), database)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "schema introspection failed", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, schemaResponse{
		Database:    database,
		Tables:      tables,
		Fields:      fields,
		ForeignKeys: foreignKeys,
		PrimaryKeys: primaryKeys,
	})
}
