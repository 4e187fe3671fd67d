package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gastos/internal/amqp"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/storage"
)

// handleHealth is the liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the database before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "ok", "events": "disabled"}
	status, code := "ready", http.StatusOK
	if err := s.repo.Ping(ctx); err != nil {
		checks["database"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	if s.publisher != nil {
		checks["events"] = "enabled"
	}

	metrics := s.tracer.GetMetrics()
	NewJSONResponse().Status(code).Body(map[string]any{
		"status": status,
		"checks": checks,
		"metrics": map[string]any{
			"total_requests":       metrics.TotalRequests,
			"server_errors":        metrics.ServerErrors,
			"avg_response_time_us": metrics.AverageResponseTime,
			"rate_limited":         s.limiter.Rejected(),
			"active_clients":       s.limiter.ActiveClients(),
		},
	}).Write(w)
}

// writeError maps storage and validation errors onto the API's status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, entity, op string, err error) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	var resp *JSONResponseBuilder
	errorType := applog.ErrorTypeInternal
	switch {
	case core.IsValidationError(err):
		resp, errorType = BadRequestError(validationMessage(err)), applog.ErrorTypeValidation
	case errors.Is(err, storage.ErrUnknownCategory):
		resp, errorType = BadRequestError(msgUnknownCategory), applog.ErrorTypeValidation
	case errors.Is(err, storage.ErrNotFound):
		msg := msgExpenseNotFound
		if entity == applog.EntityCategory {
			msg = msgCategoryNotFound
		}
		resp, errorType = NotFoundError(msg), applog.ErrorTypeNotFound
	case errors.Is(err, storage.ErrCategoryExists):
		resp, errorType = ConflictError(msgCategoryExists), applog.ErrorTypeConflict
	case errors.Is(err, storage.ErrCategoryInUse):
		resp, errorType = ConflictError(msgCategoryInUse), applog.ErrorTypeConflict
	default:
		resp = InternalServerError(msgInternal)
	}

	fields := applog.NewFields().WithEntity(entity, r.PathValue("id"))
	if errorType == applog.ErrorTypeInternal {
		applog.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, errorType, op, fields)
	} else {
		logger.DebugContext(ctx, "Request rejected", fields.WithError(err, errorType).WithOperation(op).ToSlice()...)
	}
	resp.Write(w)
}

// publish sends a change event after a successful mutation. Broker failures
// are logged and never fail the request.
func (s *Server) publish(ctx context.Context, entity, op, id string) {
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogMutation(ctx, entity, op, id)
	if s.publisher == nil {
		return
	}
	ev := amqp.NewChangeEvent(entity, eventOps[op], id)
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAMQP).
			WarnContext(ctx, "Failed to publish change event", applog.NewFields().
				WithEntity(entity, id).
				WithError(err, applog.ErrorTypeNetwork).
				ToSlice()...)
	}
}

var eventOps = map[string]string{
	applog.OpCreate: amqp.OpCreated,
	applog.OpUpdate: amqp.OpUpdated,
	applog.OpDelete: amqp.OpDeleted,
}
