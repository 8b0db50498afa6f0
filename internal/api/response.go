package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
)

const (
	CodeSuccess = 2000
	CodeError   = -1
)

// Result is the envelope every console endpoint answers with.
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: CodeSuccess, Type: "success", Message: "ok", Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: CodeError, Type: "error", Message: message}
}

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type QueuedResult struct {
	Queued     bool   `json:"queued"`
	MutationID string `json:"mutationId"`
}

type OutboxStatus struct {
	Enabled bool  `json:"enabled"`
	Pending int64 `json:"pending"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", sl.Err(err))
	}
}
