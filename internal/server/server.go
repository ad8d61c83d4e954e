// Package server provides the HTTP server and relay controller.
//
// The server exposes two routes:
//
//   - GET|POST /ncip - Receives an InnReach NCIP document and returns the
//     relayed or synthesized NCIP response. The root path is an alias,
//     since some InnReach installations post to /.
//   - GET /health - Liveness probe.
//
// The relay controller sniffs the request type from the inbound document
// and dispatches: ItemCheckedOut and ItemRenewed go to the checkout
// orchestrator when the checkout feature is enabled; everything else takes
// the generic path (translate to the Alma dialect, POST to the Alma NCIP
// endpoint, translate the reply back). Unrecognized request types pass
// through the generic path unmodified except for the rules that happen to
// match, which degrades to agency-code substitution.
package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/alma"
	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/checkout"
	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/config"
	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/internal/translate"
	"github.com/CentralMichiganUniversity-Library/Alma-InnReach-Relay/pkg/ncip"
)

// Server is the relay HTTP server.
type Server struct {
	cfg          *config.Config
	logger       *slog.Logger
	httpSrv      *http.Server
	translator   *translate.Translator
	client       *alma.Client
	orchestrator *checkout.Orchestrator
}

// New creates a relay server from the loaded configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := alma.NewClient(alma.Config{
		NCIPURL:      cfg.Alma.NCIPURL,
		Desk:         cfg.Checkout.Desk,
		Library:      cfg.Checkout.Library,
		LoanURL:      cfg.Checkout.LoanURL,
		DueDateURL:   cfg.Checkout.DueDateURL,
		UserLoansURL: cfg.Checkout.UserLoansURL,
		Timeout:      cfg.Alma.Timeout,
	}, logger)

	translator := translate.New(translate.AgencyMapping{
		SiteCode:        cfg.Relay.SiteCode,
		SchemeTag:       cfg.Relay.SchemeTag,
		UserIDSchemeTag: cfg.Relay.UserIDSchemeTag,
		UserGroup:       cfg.Relay.UserGroup,
		InstitutionCode: cfg.Alma.InstitutionCode,
		InstitutionName: cfg.Alma.InstitutionName,
		ProfileCode:     cfg.Alma.ProfileCode,
	}, logger)

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		translator:   translator,
		client:       client,
		orchestrator: checkout.New(client, cfg.Relay.SiteCode, logger),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpSrv = &http.Server{
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	return s, nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ncip", s.handleNCIP)
	mux.HandleFunc("/", s.handleNCIP)
}

// Handler returns the server's HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start begins listening on the specified address.
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("starting relay", "addr", addr, "checkout_enabled", s.cfg.Checkout.Enabled)
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleNCIP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	start := time.Now()
	log := s.logger.With(slog.String("request_id", uuid.NewString()))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	doc, err := ncip.Parse(body)
	if err != nil {
		log.Error("unparsable NCIP request", "error", err)
		http.Error(w, "malformed NCIP document", http.StatusBadRequest)
		return
	}

	requestType := doc.RequestType()
	log = log.With(slog.String("request_type", requestType))

	var out *ncip.Document
	switch {
	case requestType == "ItemCheckedOut" && s.cfg.Checkout.Enabled:
		out = s.orchestrator.ItemCheckedOut(r.Context(), doc)
	case requestType == "ItemRenewed" && s.cfg.Checkout.Enabled:
		out = s.orchestrator.ItemRenewed(r.Context(), doc)
	default:
		out, err = s.relayGeneric(r.Context(), doc, requestType)
		if err != nil {
			log.Error("relay failed", "error", err)
			http.Error(w, "upstream NCIP call failed", http.StatusBadGateway)
			return
		}
	}

	payload, err := out.Bytes()
	if err != nil {
		log.Error("serializing response", "error", err)
		http.Error(w, "failed to serialize response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write(payload)
	log.Info("request handled", slog.Duration("elapsed", time.Since(start)))
}

// relayGeneric is the translation path for every request type that is not
// orchestrated: rewrite to the Alma dialect, relay, rewrite the reply back.
func (s *Server) relayGeneric(ctx context.Context, doc *ncip.Document, requestType string) (*ncip.Document, error) {
	s.translator.ToAlma(doc, requestType)
	reply, err := s.client.SendNCIP(ctx, doc)
	if err != nil {
		return nil, err
	}
	s.translator.ToInnReach(reply, requestType)
	return reply, nil
}
