package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/bnbbuilders/tbnb-faucet/internal/buildinfo"
	"github.com/bnbbuilders/tbnb-faucet/internal/core/ports"
	"github.com/bnbbuilders/tbnb-faucet/internal/health"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

// Info describes the running faucet on /status
type Info struct {
	Treasury          string
	ChainID           string
	AmountWei         string
	MinAccountAgeDays int
	MinPublicRepos    int
}

// Server serves the tool-call surface and the legacy REST endpoints
type Server struct {
	distribution ports.DistributionService
	health       *health.Status
	info         Info
	issueSchema  *openapi3.Schema
	tools        []Tool
}

// NewServer is a Server constructor
func NewServer(distribution ports.DistributionService, health *health.Status, info Info) *Server {
	schema := issueSchema(info.MinAccountAgeDays, info.MinPublicRepos)
	return &Server{
		distribution: distribution,
		health:       health,
		info:         info,
		issueSchema:  schema,
		tools:        []Tool{issueTool(schema)},
	}
}

// Router returns the http handler with every route and middleware mounted
func (s *Server) Router(ctx context.Context, allowedOrigins []string) http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		middleware.RealIP,
		log.ChiMiddleware(ctx),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)

	mux.Get("/health", s.Health)
	mux.Get("/status", s.Status)
	mux.Post("/requests", s.Requests)
	mux.Route("/mcp/v1", func(r chi.Router) {
		r.Post("/tools", s.ListTools)
		r.Post("/tools/call", s.CallTool)
	})
	return mux
}

// Health reports liveness plus the reachability of the database and the cache
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", MCPVersion: MCPVersion}
	if s.health != nil {
		st := s.health.Status(r.Context())
		resp.DB = st[health.DB]
		resp.Cache = st[health.Cache]
	}
	writeJSON(w, http.StatusOK, resp)
}

// Status reports build and chain details
func (s *Server) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Revision:  buildinfo.Revision(),
		Treasury:  s.info.Treasury,
		ChainID:   s.info.ChainID,
		AmountWei: s.info.AmountWei,
	})
}

// Requests handles the legacy REST endpoint POST /requests
func (s *Server) Requests(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}
	args, err := decodeArguments(s.issueSchema, body)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "malformed json body"})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	outcome := s.distribution.Issue(r.Context(), args.request())
	setRetryAfter(w, outcome)
	writeJSON(w, httpStatus(outcome), outcomeResponse(outcome))
}
