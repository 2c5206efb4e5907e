package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tradebooks/internal/app"
	"tradebooks/internal/obs"
)

// Handler holds the ApplicationService and the chi router. It is a pure
// transport layer: decode, call, encode. Authentication and authorization
// live in front of this service; every request is trusted as pre-approved.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))
	r.Use(RequestBodyLimit(1 << 20))
	r.Use(obs.Instrument)

	r.Get("/api/health", h.health)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	// Registry
	r.Post("/api/accounts", h.createAccount)
	r.Get("/api/accounts", h.listAccounts)
	r.Get("/api/accounts/{id}", h.getAccount)
	r.Get("/api/accounts/{id}/balance", h.getBalance)
	r.Get("/api/accounts/{id}/statement", h.getStatement)

	// Ledger mutations
	r.Post("/api/credits", h.addCredit)
	r.Post("/api/expenses", h.addExpense)
	r.Post("/api/transfers", h.addTransfer)
	r.Delete("/api/transactions/{kind}/{id}", h.deleteTransaction)

	// Receivables
	r.Post("/api/receivables/clients", h.createClient)
	r.Post("/api/receivables/operations", h.addOperation)
	r.Get("/api/accounts/{id}/clients", h.listClients)

	// Partner deliveries
	r.Post("/api/deliveries", h.addDelivery)
	r.Put("/api/deliveries/{id}/status", h.setDeliveryStatus)
	r.Get("/api/accounts/{id}/deliveries", h.listDeliveries)

	// Reports
	r.Get("/api/reports/pl", h.computePL)
	r.Get("/api/reports/cash", h.availableCash)

	// Admin
	r.Post("/api/admin/reconcile", h.reconcile)
	r.Post("/api/admin/accounts/{id}/backup", h.backupAccount)
	r.Post("/api/admin/restore", h.restoreBackup)
	r.Delete("/api/admin/accounts/{id}", h.deleteAccount)
	r.Post("/api/admin/accounts/{id}/empty", h.emptyAccount)

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req app.CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.CreateAccount(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListAccounts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"account_id": id,
		"balance":    result.Account.CurrentBalance,
	})
}

func (h *Handler) getStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.GetStatement(r.Context(), id, r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addCredit(w http.ResponseWriter, r *http.Request) {
	var req app.AddCreditRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.AddCredit(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addExpense(w http.ResponseWriter, r *http.Request) {
	var req app.AddExpenseRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.AddExpense(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addTransfer(w http.ResponseWriter, r *http.Request) {
	var req app.AddTransferRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.AddTransfer(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.DeleteTransaction(r.Context(), chi.URLParam(r, "kind"), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req app.CreateClientRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.CreateReceivableClient(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addOperation(w http.ResponseWriter, r *http.Request) {
	var req app.AddOperationRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.AddReceivableOperation(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListReceivableClients(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) addDelivery(w http.ResponseWriter, r *http.Request) {
	var req app.AddDeliveryRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.AddPartnerDelivery(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) setDeliveryStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if !decode(w, r, &req) {
		return
	}
	result, err := h.svc.SetDeliveryValidation(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) listDeliveries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.ListPartnerDeliveries(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) computePL(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ComputePL(r.Context(), r.URL.Query().Get("cutoff"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) availableCash(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.AvailableCash(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ReconcileAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) backupAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	result, err := h.svc.BackupAccount(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) restoreBackup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BackupID string `json:"backup_id"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.RestoreBackup(r.Context(), req.BackupID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "restored"})
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := destructiveRequest(w, r)
	if !ok {
		return
	}
	result, err := h.svc.DeleteAccount(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) emptyAccount(w http.ResponseWriter, r *http.Request) {
	req, ok := destructiveRequest(w, r)
	if !ok {
		return
	}
	result, err := h.svc.EmptyAccount(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// destructiveRequest assembles a DestructiveRequest from the path id and an
// optional JSON body carrying actor and reason.
func destructiveRequest(w http.ResponseWriter, r *http.Request) (app.DestructiveRequest, bool) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return app.DestructiveRequest{}, false
	}
	var req app.DestructiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return app.DestructiveRequest{}, false
	}
	req.AccountID = id
	return req, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, r, "invalid JSON body", "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, r, "invalid id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
