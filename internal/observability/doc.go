// Package observability provides logging and metrics support for the
// citation index service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithComponent(logger, "resolver")
//
// Request-scoped fields travel in the context and are attached with
// FromContext:
//
//	ctx = observability.WithRequestID(ctx, reqID)
//	ctx = observability.WithOperation(ctx, "citations_info")
//	observability.FromContext(ctx, logger).Warn().Msg("chunk degraded")
//
// # Metrics
//
//	metrics := observability.NewMetrics("citeindex")
//	metrics.RecordOperation("merge", "ok", 0.02)
//	metrics.RecordDegradedChunk("resolver", "meta-sparql")
//
// All Record methods accept a nil receiver so components can run without
// metrics in tests and in the CLI.
//
// # Standard Fields
//
//   - request_id: API request identifier
//   - operation: transform or parameter operation name
//   - component: pipeline component (resolver, fetcher, operations)
//   - source: upstream collaborator (meta-sparql, index-sparql, meta-api, unpaywall)
package observability
