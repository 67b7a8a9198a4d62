package handler

import (
	"net/http"

	"github.com/pemsgate/pemsgate/internal/api/response"
	"github.com/pemsgate/pemsgate/internal/schema"
)

// SchemaHandler serves the canonical dataset schemas.
type SchemaHandler struct{}

// NewSchemaHandler creates a new SchemaHandler.
func NewSchemaHandler() *SchemaHandler {
	return &SchemaHandler{}
}

// List handles GET /v1/schemas - the canonical fields of every dataset
// kind, grouped into required and optional, for mapping UIs.
func (h *SchemaHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, schema.AsPayload())
}
