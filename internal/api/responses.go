package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
)

// OutcomeResponse is the JSON form of a DistributionOutcome
type OutcomeResponse struct {
	*domain.DistributionOutcome
	RetryAfterSeconds *int64 `json:"retry_after_seconds,omitempty"`
}

func outcomeResponse(o *domain.DistributionOutcome) OutcomeResponse {
	return OutcomeResponse{DistributionOutcome: o, RetryAfterSeconds: o.RetryAfterSeconds()}
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status     string `json:"status"`
	MCPVersion string `json:"mcp_version"`
	DB         bool   `json:"db"`
	Cache      bool   `json:"cache"`
}

// StatusResponse is returned by GET /status
type StatusResponse struct {
	Revision  string `json:"revision"`
	Treasury  string `json:"treasury"`
	ChainID   string `json:"chain_id"`
	AmountWei string `json:"amount_wei"`
}

// ErrorResponse is the body of plain http errors
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// httpStatus maps a terminal state to the legacy REST status code
func httpStatus(o *domain.DistributionOutcome) int {
	switch o.Status {
	case domain.StatusIssued:
		return http.StatusOK
	case domain.StatusDeniedInvalidInput:
		return http.StatusBadRequest
	case domain.StatusDeniedVerification:
		return http.StatusForbidden
	case domain.StatusDeniedCooldown:
		return http.StatusTooManyRequests
	case domain.StatusDeniedLookupUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func setRetryAfter(w http.ResponseWriter, o *domain.DistributionOutcome) {
	if secs := o.RetryAfterSeconds(); secs != nil {
		w.Header().Set("Retry-After", strconv.FormatInt(*secs, 10))
	}
}
