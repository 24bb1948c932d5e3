package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/lendlog/pkg/auth"
	"github.com/mcclellann/lendlog/pkg/ledger"
	"github.com/mcclellann/lendlog/pkg/logger"
	"github.com/mcclellann/lendlog/pkg/models"
	"github.com/mcclellann/lendlog/pkg/store"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	tokens  *auth.Issuer
	storage store.Storage // Keep a reference to the storage to close it
	now     func() time.Time
}

func NewServer(s store.Storage, tokens *auth.Issuer) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, tokens),
		tokens:  tokens,
		storage: s,
		now:     time.Now,
	}
}

type errorResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// writeError maps ledger errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: verr.Message, Field: verr.Field})
	case errors.Is(err, ledger.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, ledger.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Invalid email or password")
	case errors.Is(err, ledger.ErrDuplicateEmail),
		errors.Is(err, ledger.ErrContactInUse),
		errors.Is(err, ledger.ErrInvalidState):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		logger.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		hubFor(r).CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}

func hubFor(r *http.Request) *sentry.Hub {
	if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
		return hub
	}
	return sentry.CurrentHub()
}

// maxBodyBytes caps the size of a JSON request body.
const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid ID")
		return uuid.Nil, false
	}
	return id, true
}

// asOf reads the optional ?as_of=YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return models.DateOf(s.now().UTC()).Time, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error(), Field: "as_of"})
		return time.Time{}, false
	}
	return d.Time, true
}

func currentUser(r *http.Request) uuid.UUID {
	id, _ := auth.UserIDFrom(r.Context())
	return id
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.ledger.Register(r.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := s.ledger.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) currentUserHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.ledger.GetUser(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) listContactsHandler(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.ledger.ListContacts(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) getContactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	contact, err := s.ledger.GetContact(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) createContactHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.ContactInput
	if !decodeBody(w, r, &req) {
		return
	}
	contact, err := s.ledger.CreateContact(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (s *Server) updateContactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ledger.ContactUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	contact, err := s.ledger.UpdateContact(r.Context(), currentUser(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) deleteContactHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteContact(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.ListTransactions(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	detail, err := s.ledger.GetTransaction(r.Context(), currentUser(r), id, asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) createTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.TransactionInput
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) updateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ledger.TransactionUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), currentUser(r), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) settleTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	tx, err := s.ledger.SettleTransaction(r.Context(), currentUser(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) deleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.PaymentInput
	if !decodeBody(w, r, &req) {
		return
	}
	payment, err := s.ledger.RecordPayment(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

func (s *Server) deletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.ledger.DeletePayment(r.Context(), currentUser(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dashboardStatsHandler(w http.ResponseWriter, r *http.Request) {
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	stats, err := s.ledger.DashboardStats(r.Context(), currentUser(r), asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
