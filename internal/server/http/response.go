package httpserver

import (
	"github.com/helixir/citation-index-service/internal/table"
)

// Request and response types for JSON serialization.

// transformRequest is the JSON body of POST /transforms/{operation}.
type transformRequest struct {
	Args  []string     `json:"args,omitempty"`
	Table *table.Table `json:"table" validate:"required"`
}

type transformResponse struct {
	Operation string       `json:"operation"`
	Replace   bool         `json:"replace"`
	Table     *table.Table `json:"table"`
}

type paramResponse struct {
	Operation string `json:"operation"`
	Value     string `json:"value"`
	Result    string `json:"result"`
}

type operationsResponse struct {
	Transforms []string `json:"transforms"`
	Params     []string `json:"params"`
}

type errorResponse struct {
	Error string `json:"error"`
}
