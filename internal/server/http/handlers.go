package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/citation-index-service/internal/domain"
	"github.com/helixir/citation-index-service/internal/observability"
	"github.com/helixir/citation-index-service/internal/table"
)

// Output formats of a transform result.
const (
	formatTable   = "table"
	formatRecords = "records"
	formatCSV     = "csv"

	contentTypeCSV = "text/csv"

	// replaceHeader carries the replace flag when the body is not JSON.
	replaceHeader = "X-Replace-Table"

	// statusClientClosedRequest is reported when the caller went away.
	statusClientClosedRequest = 499
)

var validate = validator.New()

// listOperations handles GET /operations.
func (s *Server) listOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, operationsResponse{
		Transforms: s.registry.TransformNames(),
		Params:     s.registry.ParamNames(),
	})
}

// runTransform handles POST /transforms/{operation}.
//
// The body is either a JSON transformRequest or, with Content-Type
// text/csv, a CSV table whose arguments come from repeated "arg" query
// parameters. The result format follows the "format" query parameter,
// falling back to the Accept header.
func (s *Server) runTransform(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "operation")
	fn, ok := s.registry.Transform(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown transform: "+name)
		return
	}

	t, args, status, msg := s.decodeTransformRequest(r)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	out, replace, err := fn(r.Context(), t, args...)
	if err != nil {
		s.writeOperationError(r.Context(), w, err)
		return
	}
	if out == nil {
		out = table.New()
	}

	switch outputFormat(r) {
	case formatCSV:
		w.Header().Set("Content-Type", contentTypeCSV)
		w.Header().Set(replaceHeader, strconv.FormatBool(replace))
		w.WriteHeader(http.StatusOK)
		if err := out.WriteCSV(w); err != nil {
			s.logger.Error().Err(err).Msg("failed to write csv response")
		}
	case formatRecords:
		var buf bytes.Buffer
		if err := out.WriteJSON(&buf); err != nil {
			s.writeOperationError(r.Context(), w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(replaceHeader, strconv.FormatBool(replace))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, transformResponse{
			Operation: name,
			Replace:   replace,
			Table:     out,
		})
	}
}

// decodeTransformRequest reads the input table and arguments. A non-zero
// status reports a client error.
func (s *Server) decodeTransformRequest(r *http.Request) (*table.Table, []string, int, string) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody+1))
	if err != nil {
		return nil, nil, http.StatusBadRequest, "failed to read request body"
	}
	if int64(len(body)) > s.maxBody {
		return nil, nil, http.StatusRequestEntityTooLarge, "request body too large"
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == contentTypeCSV {
		t, err := table.ReadCSV(bytes.NewReader(body))
		if err != nil {
			return nil, nil, http.StatusBadRequest, "invalid CSV table"
		}
		return t, r.URL.Query()["arg"], 0, ""
	}

	var req transformRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, http.StatusBadRequest, "invalid JSON request body"
	}
	if err := validate.Struct(req); err != nil {
		return nil, nil, http.StatusBadRequest, "table is required"
	}
	if err := req.Table.Validate(); err != nil {
		return nil, nil, http.StatusBadRequest, "invalid table: " + err.Error()
	}
	return req.Table, req.Args, 0, ""
}

// runParam handles GET /params/{operation}/{value}. The value is the rest
// of the path, so identifiers keep their slashes.
func (s *Server) runParam(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "operation")
	fn, ok := s.registry.Param(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown parameter preprocessor: "+name)
		return
	}

	value := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		// chi routes on the escaped path when one is present.
		unescaped, err := url.PathUnescape(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parameter value")
			return
		}
		value = unescaped
	}
	result, err := fn(r.Context(), value)
	if err != nil {
		s.writeOperationError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, paramResponse{
		Operation: name,
		Value:     value,
		Result:    result,
	})
}

func outputFormat(r *http.Request) string {
	switch f := strings.ToLower(r.URL.Query().Get("format")); f {
	case formatCSV, formatRecords, formatTable:
		return f
	}
	if strings.Contains(r.Header.Get("Accept"), contentTypeCSV) {
		return formatCSV
	}
	return formatTable
}

// writeOperationError maps operation errors to HTTP status codes.
// Internal details of upstream failures are logged, not returned.
func (s *Server) writeOperationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(ctx, s.logger).Error().
			Err(err).
			Str("error_type", observability.ErrorType(err)).
			Msg("operation failed")
	}

	switch {
	case errors.Is(err, domain.ErrContractViolation), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, status, err.Error())
	case status == statusClientClosedRequest:
		writeError(w, status, "client closed request")
	default:
		writeError(w, status, http.StatusText(status))
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrContractViolation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrTransport), errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
