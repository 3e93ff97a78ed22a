// internal/loaner/handler.go
package loaner

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler exposes the loaner workflow and a few read-through lookups over
// HTTP. The remote client is only used for the read-through endpoints; all
// loan logic goes through the service.
type Handler struct {
	service Service
	remote  RemoteService
}

func NewHandler(service Service, remote RemoteService) *Handler {
	return &Handler{service: service, remote: remote}
}

// Routes builds the router for the service.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Post("/loan/checkout", h.HandleCheckout)
	r.Post("/loan/checkin", h.HandleCheckin)
	r.Get("/tdx/asset/{tag}", h.HandleGetAsset)
	r.Get("/tdx/people/{uniqname}", h.HandleGetPeople)
	r.Get("/tdx/ticket/{id}", h.HandleGetTicket)
	return r
}

// requestID tags every response so a failed operation can be correlated
// with the remote service's logs.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Uniqname string `json:"uniqname"`
		AssetTag string `json:"asset_tag"`
		Comment  string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Checkout(r.Context(), req.Uniqname, req.AssetTag, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) HandleCheckin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AssetTag string `json:"asset_tag"`
		Comment  string `json:"comment"`
		TicketID int    `json:"ticket_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.CheckIn(r.Context(), req.AssetTag, req.Comment, req.TicketID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *Handler) HandleGetAsset(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")
	if err := ValidateTag(tag); err != nil {
		writeError(w, err)
		return
	}

	assets, err := h.remote.SearchAssets(r.Context(), tag)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(assets) == 0 {
		writeError(w, newError(KindAssetNotFound, "no asset found for tag").With("tag", tag))
		return
	}

	asset, err := h.remote.GetAsset(r.Context(), assets[0].ID)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(asset)
}

func (h *Handler) HandleGetPeople(w http.ResponseWriter, r *http.Request) {
	handle, err := ValidateHandle(chi.URLParam(r, "uniqname"))
	if err != nil {
		writeError(w, err)
		return
	}

	people, err := h.remote.SearchPeople(r.Context(), handle)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(people)
}

func (h *Handler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid ticket ID", http.StatusBadRequest)
		return
	}

	ticket, err := h.remote.GetTicket(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ticket)
}

// statusForKind maps the workflow error taxonomy to HTTP status codes.
func statusForKind(kind Kind) int {
	switch kind {
	case KindInvalidIdentifier, KindInvalidAssetTag:
		return http.StatusBadRequest
	case KindAssetNotFound, KindNoLoanRequest:
		return http.StatusNotFound
	case KindAmbiguousMatch:
		return http.StatusConflict
	case KindLoanRequestDenied, KindLoanAlreadyFulfilled,
		KindAssetNotReadyToLoan, KindAssetAlreadyCheckedIn, KindWrongAssetType:
		return http.StatusUnprocessableEntity
	case KindAttachFailure, KindTransportError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a workflow error as a structured JSON body. Errors
// without a workflow kind become plain transport failures.
func writeError(w http.ResponseWriter, err error) {
	var wf *WorkflowError
	if !errors.As(err, &wf) {
		wf = &WorkflowError{Kind: KindTransportError, Message: err.Error()}
	}

	body := map[string]any{
		"code":    string(wf.Kind),
		"message": wf.Message,
	}
	for k, v := range wf.Attrs {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(wf.Kind))
	json.NewEncoder(w).Encode(map[string]any{"error": body})
}
