// Package server is the External Interface Layer: it exposes the core's operations over HTTP per
// the endpoint contract, translating JSON requests/responses to and from calls into the
// federation package. None of the core subsystems import this package.
package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	errs "github.com/dagregi/oidf-federation/errors"
	"github.com/dagregi/oidf-federation/federation"
)

// Server wires an EntityContext, Signer, and TrustMarkIssuer to the HTTP endpoint contract.
type Server struct {
	ctx           *federation.EntityContext
	signer        *federation.Signer
	issuer        *federation.TrustMarkIssuer
	entityName    string
	fetchEndpoint string
	listEndpoint  string
	mux           *http.ServeMux
}

// New builds a Server. baseURL is this entity's own identifier (used to build the
// source_endpoint and default metadata URLs it publishes about itself).
func New(ctx *federation.EntityContext, signer *federation.Signer, issuer *federation.TrustMarkIssuer, baseURL, entityName string) *Server {
	s := &Server{
		ctx:           ctx,
		signer:        signer,
		issuer:        issuer,
		entityName:    entityName,
		fetchEndpoint: baseURL + "/fetch",
		listEndpoint:  baseURL + "/manage/subordinates",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-federation", s.handleWellKnown)
	mux.HandleFunc("GET /fetch", s.handleFetch)

	mux.HandleFunc("GET /manage/entity", s.handleGetEntity)
	mux.HandleFunc("POST /manage/entity/authority-hints", s.handleSetAuthorityHints)

	mux.HandleFunc("GET /manage/subordinates", s.handleListSubordinates)
	mux.HandleFunc("POST /manage/subordinates", s.handleUpsertSubordinate)
	mux.HandleFunc("GET /manage/subordinates/{id...}", s.handleGetSubordinate)
	mux.HandleFunc("PUT /manage/subordinates/{id...}", s.handleUpdateSubordinate)
	mux.HandleFunc("DELETE /manage/subordinates/{id...}", s.handleDeleteSubordinate)

	mux.HandleFunc("POST /manage/trust-marks", s.handleIssueTrustMark)
	mux.HandleFunc("GET /manage/trust-marks", s.handleListIssuedTrustMarks)
	mux.HandleFunc("GET /manage/trust-marks/{id...}", s.handleGetIssuedTrustMark)
	mux.HandleFunc("DELETE /manage/trust-marks/{id...}", s.handleRevokeTrustMark)

	mux.HandleFunc("POST /manage/entity/trust-marks", s.handleAddReceivedTrustMark)
	mux.HandleFunc("GET /manage/entity/trust-marks", s.handleListReceivedTrustMarks)

	s.mux = mux
	return s
}

// Handler returns the http.Handler serving the endpoint contract. An {id} path parameter may be a
// raw URL with its own slashes: it is escaped into a single segment before routing, so the mux
// does not collapse its "//" and redirect.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range []string{"/manage/subordinates/", "/manage/trust-marks/"} {
			if id, ok := strings.CutPrefix(r.URL.Path, prefix); ok {
				r.URL.RawPath = prefix + url.PathEscape(id)
				break
			}
		}
		s.mux.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an error's Kind to the HTTP status table in the error handling design, and
// writes a {error: ...} body, merging in any caller-supplied identifiers.
func writeError(w http.ResponseWriter, err error, extra map[string]interface{}) {
	status := http.StatusInternalServerError
	switch errs.KindOf(err) {
	case errs.BadRequest, errs.SubjectMismatch:
		status = http.StatusBadRequest
	case errs.NotFound:
		status = http.StatusNotFound
	case errs.SignFailure:
		status = http.StatusInternalServerError
	}

	body := map[string]interface{}{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func (s *Server) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	jwt, err := federation.SignEntityConfiguration(s.ctx, s.signer, s.fetchEndpoint, s.listEndpoint)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	w.Header().Set("Content-Type", "application/entity-statement+jwt")
	w.Write([]byte(jwt))
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	sub := r.URL.Query().Get("sub")
	if sub == "" {
		writeError(w, errs.Kindf(errs.BadRequest, "sub query parameter is required"), nil)
		return
	}

	subID, err := federation.NewIdentifier(sub)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid sub: %s", err), nil)
		return
	}

	jwt, err := federation.SignSubordinateStatement(s.ctx, s.signer, subID, s.fetchEndpoint)
	if err != nil {
		if errs.KindOf(err) == errs.NotFound {
			writeError(w, err, map[string]interface{}{"entity_id": sub})
			return
		}
		writeError(w, err, nil)
		return
	}

	w.Header().Set("Content-Type", "application/entity-statement+jwt")
	w.Write([]byte(jwt))
}

type entitySummary struct {
	EntityName        string   `json:"entity_name"`
	EntityID          string   `json:"entity_id"`
	SubordinatesCount int      `json:"subordinates_count"`
	AuthorityHints    []string `json:"authority_hints"`
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	hints := s.ctx.AuthorityHints()
	hintStrings := make([]string, len(hints))
	for i, h := range hints {
		hintStrings[i] = h.String()
	}

	writeJSON(w, http.StatusOK, entitySummary{
		EntityName:        s.entityName,
		EntityID:          s.ctx.EntityID().String(),
		SubordinatesCount: len(s.ctx.ListSubordinates()),
		AuthorityHints:    hintStrings,
	})
}

func (s *Server) handleSetAuthorityHints(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AuthorityHints []string `json:"authority_hints"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid request body: %s", err), nil)
		return
	}
	if body.AuthorityHints == nil {
		writeError(w, errs.Kindf(errs.BadRequest, "authority_hints field is required"), nil)
		return
	}

	hints := make([]federation.Identifier, 0, len(body.AuthorityHints))
	for _, raw := range body.AuthorityHints {
		hint, err := federation.NewIdentifier(raw)
		if err != nil {
			writeError(w, errs.Kindf(errs.BadRequest, "invalid authority hint %q: %s", raw, err), nil)
			return
		}
		hints = append(hints, hint)
	}

	s.ctx.SetAuthorityHints(hints)
	writeJSON(w, http.StatusOK, map[string]interface{}{"authority_hints": body.AuthorityHints})
}

type subordinateDTO struct {
	EntityID       string                 `json:"entity_id"`
	JWKS           map[string]interface{} `json:"jwks,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	AuthorityHints []string               `json:"authority_hints,omitempty"`
	CreatedAt      int64                  `json:"created_at"`
}

func toSubordinateDTO(record federation.SubordinateRecord) subordinateDTO {
	hints := make([]string, len(record.AuthorityHints))
	for i, h := range record.AuthorityHints {
		hints[i] = h.String()
	}
	return subordinateDTO{
		EntityID:       record.EntityID.String(),
		JWKS:           record.JWKS,
		Metadata:       record.Metadata,
		AuthorityHints: hints,
		CreatedAt:      record.CreatedAt,
	}
}

func (s *Server) handleListSubordinates(w http.ResponseWriter, r *http.Request) {
	records := s.ctx.ListSubordinates()
	dtos := make([]subordinateDTO, len(records))
	for i, record := range records {
		dtos[i] = toSubordinateDTO(record)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) upsertSubordinate(w http.ResponseWriter, r *http.Request, createdAt int64) {
	var body subordinateDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid request body: %s", err), nil)
		return
	}
	if body.EntityID == "" {
		writeError(w, errs.Kindf(errs.BadRequest, "entity_id field is required"), nil)
		return
	}

	entityID, err := federation.NewIdentifier(body.EntityID)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid entity_id: %s", err), nil)
		return
	}

	hints := make([]federation.Identifier, 0, len(body.AuthorityHints))
	for _, raw := range body.AuthorityHints {
		hint, err := federation.NewIdentifier(raw)
		if err != nil {
			writeError(w, errs.Kindf(errs.BadRequest, "invalid authority hint %q: %s", raw, err), nil)
			return
		}
		hints = append(hints, hint)
	}

	s.ctx.AddSubordinate(federation.SubordinateRecord{
		EntityID:       entityID,
		JWKS:           body.JWKS,
		Metadata:       body.Metadata,
		AuthorityHints: hints,
		CreatedAt:      createdAt,
	})

	record, _ := s.ctx.GetSubordinate(entityID)
	writeJSON(w, http.StatusOK, toSubordinateDTO(record))
}

func (s *Server) handleUpsertSubordinate(w http.ResponseWriter, r *http.Request) {
	s.upsertSubordinate(w, r, s.ctx.Clock().Now())
}

func (s *Server) handleUpdateSubordinate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entityID, err := federation.NewIdentifier(id)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid entity id %q: %s", id, err), nil)
		return
	}
	existing, ok := s.ctx.GetSubordinate(entityID)
	createdAt := s.ctx.Clock().Now()
	if ok {
		createdAt = existing.CreatedAt
	}
	s.upsertSubordinate(w, r, createdAt)
}

func (s *Server) handleGetSubordinate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entityID, err := federation.NewIdentifier(id)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid entity id %q: %s", id, err), nil)
		return
	}
	record, ok := s.ctx.GetSubordinate(entityID)
	if !ok {
		writeError(w, errs.Kindf(errs.NotFound, "subordinate not found"), map[string]interface{}{"entity_id": id})
		return
	}
	writeJSON(w, http.StatusOK, toSubordinateDTO(record))
}

func (s *Server) handleDeleteSubordinate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	entityID, err := federation.NewIdentifier(id)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid entity id %q: %s", id, err), nil)
		return
	}
	removed := s.ctx.RemoveSubordinate(entityID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

type trustMarkDTO struct {
	ID        string `json:"id"`
	Issuer    string `json:"issuer"`
	Subject   string `json:"subject"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt *int64 `json:"expires_at,omitempty"`
	SignedJWT string `json:"signed_jwt,omitempty"`
}

func toTrustMarkDTO(record federation.TrustMarkRecord) trustMarkDTO {
	return trustMarkDTO{
		ID:        record.ID.String(),
		Issuer:    record.Issuer.String(),
		Subject:   record.Subject.String(),
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
		SignedJWT: record.SignedJWT,
	}
}

func (s *Server) handleIssueTrustMark(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TrustMarkID    string `json:"trust_mark_id"`
		Subject        string `json:"subject"`
		ExpiresInSeconds *int64 `json:"expires_in"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid request body: %s", err), nil)
		return
	}
	if body.TrustMarkID == "" || body.Subject == "" {
		writeError(w, errs.Kindf(errs.BadRequest, "trust_mark_id and subject fields are required"), nil)
		return
	}

	trustMarkID, err := federation.NewIdentifier(body.TrustMarkID)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid trust_mark_id: %s", err), nil)
		return
	}
	subject, err := federation.NewIdentifier(body.Subject)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid subject: %s", err), nil)
		return
	}

	jwt, err := s.issuer.Issue(trustMarkID, subject, body.ExpiresInSeconds)
	if err != nil {
		writeError(w, err, nil)
		return
	}

	record, _ := s.ctx.GetIssuedTrustMark(trustMarkID)
	dto := toTrustMarkDTO(record)
	dto.SignedJWT = jwt
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) handleListIssuedTrustMarks(w http.ResponseWriter, r *http.Request) {
	records := s.ctx.IssuedTrustMarks()
	dtos := make([]trustMarkDTO, len(records))
	for i, record := range records {
		dtos[i] = toTrustMarkDTO(record)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleGetIssuedTrustMark(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	trustMarkID, err := federation.NewIdentifier(id)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid trust mark id %q: %s", id, err), nil)
		return
	}
	record, ok := s.ctx.GetIssuedTrustMark(trustMarkID)
	if !ok {
		writeError(w, errs.Kindf(errs.NotFound, "trust mark not found"), map[string]interface{}{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, toTrustMarkDTO(record))
}

func (s *Server) handleRevokeTrustMark(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	trustMarkID, err := federation.NewIdentifier(id)
	if err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid trust mark id %q: %s", id, err), nil)
		return
	}
	removed := s.issuer.Revoke(trustMarkID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

func (s *Server) handleAddReceivedTrustMark(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SignedJWT string `json:"signed_jwt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, errs.Kindf(errs.BadRequest, "invalid request body: %s", err), nil)
		return
	}
	if body.SignedJWT == "" {
		writeError(w, errs.Kindf(errs.BadRequest, "signed_jwt field is required"), nil)
		return
	}

	if err := s.issuer.AddReceived(body.SignedJWT); err != nil {
		writeError(w, err, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"added": true})
}

func (s *Server) handleListReceivedTrustMarks(w http.ResponseWriter, r *http.Request) {
	records := s.ctx.ReceivedTrustMarks()
	dtos := make([]trustMarkDTO, len(records))
	for i, record := range records {
		dtos[i] = toTrustMarkDTO(record)
	}
	writeJSON(w, http.StatusOK, dtos)
}
