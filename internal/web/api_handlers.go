package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/evcraddock/matchmaker/internal/intake"
	"github.com/evcraddock/matchmaker/internal/investor"
	"github.com/evcraddock/matchmaker/internal/ledger"
	"github.com/evcraddock/matchmaker/internal/listing"
	"github.com/evcraddock/matchmaker/internal/match"
)

// apiError writes a JSON error response.
func apiError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := map[string]string{"error": msg}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiJSON writes a JSON response with the given status code.
func apiJSON(w http.ResponseWriter, data interface{}, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}

// apiFailure maps service errors onto status codes.
func apiFailure(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, investor.ErrNotFound), errors.Is(err, listing.ErrNotFound):
		apiError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, intake.ErrInvalid):
		apiError(w, err.Error(), http.StatusBadRequest)
	default:
		apiError(w, fmt.Sprintf("%s: %v", action, err), http.StatusInternalServerError)
	}
}

// splitPath returns the ID and optional action from "{id}" or "{id}/{action}".
func splitPath(path string) (id, action string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	switch len(parts) {
	case 1:
		return parts[0], "", parts[0] != ""
	case 2:
		return parts[0], parts[1], parts[0] != "" && parts[1] != ""
	default:
		return "", "", false
	}
}

// parseLimit reads the optional limit query parameter. Zero means no limit.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return n, nil
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// handleAPIInvestors routes /api/investors requests.
func (s *Server) handleAPIInvestors(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/investors")

	if strings.Trim(path, "/") == "" {
		switch r.Method {
		case http.MethodGet:
			s.apiListInvestors(w, r)
		case http.MethodPost:
			s.apiPutInvestor(w, r, "")
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, action, ok := splitPath(path)
	if !ok {
		apiError(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.apiGetInvestor(w, r, id)
	case action == "" && r.Method == http.MethodPut:
		s.apiPutInvestor(w, r, id)
	case action == "matches" && r.Method == http.MethodGet:
		s.apiInvestorMatches(w, r, id)
	case action == "notify" && r.Method == http.MethodPost:
		s.apiNotifyInvestor(w, r, id)
	case action == "ledger" && r.Method == http.MethodDelete:
		s.apiResetInvestorLedger(w, r, id)
	case action == "" || action == "matches" || action == "notify" || action == "ledger":
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		apiError(w, "not found", http.StatusNotFound)
	}
}

// handleAPIProperties routes /api/properties requests.
func (s *Server) handleAPIProperties(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/properties")

	if strings.Trim(path, "/") == "" {
		switch r.Method {
		case http.MethodGet:
			s.apiListProperties(w, r)
		case http.MethodPost:
			s.apiPutProperty(w, r, "")
		default:
			apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, action, ok := splitPath(path)
	if !ok {
		apiError(w, "not found", http.StatusNotFound)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.apiGetProperty(w, r, id)
	case action == "" && r.Method == http.MethodPut:
		s.apiPutProperty(w, r, id)
	case action == "status" && r.Method == http.MethodPut:
		s.apiSetPropertyStatus(w, r, id)
	case action == "matches" && r.Method == http.MethodGet:
		s.apiPropertyMatches(w, r, id)
	case action == "notify" && r.Method == http.MethodPost:
		s.apiNotifyProperty(w, r, id)
	case action == "" || action == "status" || action == "matches" || action == "notify":
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
	default:
		apiError(w, "not found", http.StatusNotFound)
	}
}

// apiListInvestors returns investor profiles, optionally only active ones.
func (s *Server) apiListInvestors(w http.ResponseWriter, r *http.Request) {
	opts := investor.ListOptions{}
	switch r.URL.Query().Get("active") {
	case "":
	case "true":
		opts.ActiveOnly = true
	default:
		apiError(w, "active must be true", http.StatusBadRequest)
		return
	}

	profiles, err := s.investors.List(r.Context(), opts)
	if err != nil {
		apiFailure(w, "listing investors", err)
		return
	}
	apiJSON(w, nonNil(profiles), http.StatusOK)
}

func (s *Server) apiGetInvestor(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.investors.GetByID(r.Context(), id)
	if err != nil {
		apiFailure(w, "loading investor", err)
		return
	}
	apiJSON(w, p, http.StatusOK)
}

// investorResponse adds any trigger failure to an intake result.
type investorResponse struct {
	*intake.InvestorResult
	NotifyError string `json:"notify_error,omitempty"`
}

// apiPutInvestor creates or replaces a profile. The path ID wins over any
// ID in the body; an empty one is generated.
func (s *Server) apiPutInvestor(w http.ResponseWriter, r *http.Request, id string) {
	var p investor.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	p.ID = id

	result, err := s.intake.PutInvestor(r.Context(), &p)
	var trigErr *intake.TriggerError
	switch {
	case errors.As(err, &trigErr):
		apiJSON(w, investorResponse{InvestorResult: result, NotifyError: trigErr.Error()}, http.StatusOK)
	case err != nil:
		apiFailure(w, "saving investor", err)
	default:
		apiJSON(w, investorResponse{InvestorResult: result}, http.StatusOK)
	}
}

func (s *Server) apiInvestorMatches(w http.ResponseWriter, r *http.Request, id string) {
	limit, err := parseLimit(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := s.investors.GetByID(r.Context(), id)
	if err != nil {
		apiFailure(w, "loading investor", err)
		return
	}

	matches, err := s.engine.ForInvestor(r.Context(), p, limit)
	if err != nil {
		apiFailure(w, "computing matches", err)
		return
	}
	apiJSON(w, nonNil[match.Match](matches), http.StatusOK)
}

func (s *Server) apiNotifyInvestor(w http.ResponseWriter, r *http.Request, id string) {
	p, err := s.investors.GetByID(r.Context(), id)
	if err != nil {
		apiFailure(w, "loading investor", err)
		return
	}
	if !p.Active {
		apiError(w, fmt.Sprintf("investor %s is not active", id), http.StatusConflict)
		return
	}

	summary, err := s.notifier.NotifyInvestor(r.Context(), p)
	if err != nil {
		apiFailure(w, "notifying investor", err)
		return
	}
	apiJSON(w, summary, http.StatusOK)
}

func (s *Server) apiResetInvestorLedger(w http.ResponseWriter, r *http.Request, id string) {
	n, err := s.ledger.ResetInvestor(r.Context(), id)
	if err != nil {
		apiFailure(w, "resetting ledger", err)
		return
	}
	apiJSON(w, map[string]interface{}{"investor_id": id, "removed": n}, http.StatusOK)
}

// apiListProperties returns listings, optionally filtered by status.
func (s *Server) apiListProperties(w http.ResponseWriter, r *http.Request) {
	opts := listing.ListOptions{}
	if status := r.URL.Query().Get("status"); status != "" {
		if !listing.ValidStatus(status) {
			apiError(w, "status must be draft, available, rented or archived", http.StatusBadRequest)
			return
		}
		opts.Status = listing.Status(status)
	}

	listings, err := s.listings.List(r.Context(), opts)
	if err != nil {
		apiFailure(w, "listing properties", err)
		return
	}
	apiJSON(w, nonNil(listings), http.StatusOK)
}

func (s *Server) apiGetProperty(w http.ResponseWriter, r *http.Request, id string) {
	l, err := s.listings.GetByID(r.Context(), id)
	if err != nil {
		apiFailure(w, "loading property", err)
		return
	}
	apiJSON(w, l, http.StatusOK)
}

// listingResponse adds any trigger failure to an intake result.
type listingResponse struct {
	*intake.ListingResult
	NotifyError string `json:"notify_error,omitempty"`
}

func (s *Server) writeListingResult(w http.ResponseWriter, result *intake.ListingResult, err error) {
	var trigErr *intake.TriggerError
	switch {
	case errors.As(err, &trigErr):
		apiJSON(w, listingResponse{ListingResult: result, NotifyError: trigErr.Error()}, http.StatusOK)
	case err != nil:
		apiFailure(w, "saving property", err)
	default:
		apiJSON(w, listingResponse{ListingResult: result}, http.StatusOK)
	}
}

// apiPutProperty creates or replaces a listing. The path ID wins over any
// ID in the body.
func (s *Server) apiPutProperty(w http.ResponseWriter, r *http.Request, id string) {
	var l listing.Listing
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	l.ID = id

	result, err := s.intake.PutListing(r.Context(), &l)
	s.writeListingResult(w, result, err)
}

func (s *Server) apiSetPropertyStatus(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	result, err := s.intake.SetListingStatus(r.Context(), id, listing.Status(req.Status))
	s.writeListingResult(w, result, err)
}

func (s *Server) apiPropertyMatches(w http.ResponseWriter, r *http.Request, id string) {
	limit, err := parseLimit(r)
	if err != nil {
		apiError(w, err.Error(), http.StatusBadRequest)
		return
	}

	l, err := s.listings.GetByID(r.Context(), id)
	if err != nil {
		apiFailure(w, "loading property", err)
		return
	}

	matches, err := s.engine.ForListing(r.Context(), l, limit)
	if err != nil {
		apiFailure(w, "computing matches", err)
		return
	}
	apiJSON(w, nonNil[match.Match](matches), http.StatusOK)
}

func (s *Server) apiNotifyProperty(w http.ResponseWriter, r *http.Request, id string) {
	l, err := s.listings.GetByID(r.Context(), id)
	if err != nil {
		apiFailure(w, "loading property", err)
		return
	}
	if !l.Available() {
		apiError(w, fmt.Sprintf("property %s is not available", id), http.StatusConflict)
		return
	}

	summary, err := s.notifier.NotifyListing(r.Context(), l)
	if err != nil {
		apiFailure(w, "notifying property", err)
		return
	}
	apiJSON(w, summary, http.StatusOK)
}

// handleAPILedger lists notification records.
func (s *Server) handleAPILedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		apiError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	records, err := s.ledger.List(r.Context(), ledger.Filter{
		InvestorID: r.URL.Query().Get("investor"),
		PropertyID: r.URL.Query().Get("property"),
	})
	if err != nil {
		apiFailure(w, "listing ledger", err)
		return
	}
	apiJSON(w, nonNil(records), http.StatusOK)
}
