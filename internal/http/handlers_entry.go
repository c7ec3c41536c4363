package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"kharcha/internal/core"
	applog "kharcha/internal/log"
)

// entryRequest is the body of both add and update. Income is a pointer so a
// missing field is distinguishable from a zero amount.
type entryRequest struct {
	Income   *core.Money        `json:"income"`
	Expenses []core.ExpenseItem `json:"expenses"`
	Note     string             `json:"note"`
}

type entryResponse struct {
	Message string     `json:"message"`
	Entry   core.Entry `json:"entry"`
}

type historyResponse struct {
	Entries    []core.Entry `json:"entries"`
	TotalPages int          `json:"totalPages"`
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, decodeErrorMessage(err))
		return
	}

	entry, err := s.entrySvc.Create(r.Context(), userID, req.Income, req.Expenses, strings.TrimSpace(req.Note))
	if err != nil {
		if isValidationError(err) {
			writeMessage(w, http.StatusBadRequest, err.Error())
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to save entry",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldError, err,
			applog.FieldUserID, userID)
		writeMessage(w, http.StatusInternalServerError, "Failed to save entry")
		return
	}

	writeJSON(w, http.StatusCreated, entryResponse{Message: "Entry saved", Entry: entry})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	page := parseQueryInt(r, "page", 1)
	limit := parseQueryInt(r, "limit", 0) // 0 means "use the configured default"

	entries, totalPages, err := s.entrySvc.History(r.Context(), userID, page, limit)
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Error fetching entries",
			applog.FieldOperation, applog.OpList,
			applog.FieldError, err,
			applog.FieldUserID, userID,
			applog.FieldPage, page)
		writeMessage(w, http.StatusInternalServerError, "Error fetching entries")
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Entries: entries, TotalPages: totalPages})
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	entryID, ok := entryIDFromPath(r)
	if !ok {
		// A non-numeric id cannot name an entry; same outward shape as a
		// missing or foreign-owned one.
		writeMessage(w, http.StatusNotFound, "Entry not found or unauthorized")
		return
	}

	var req entryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, decodeErrorMessage(err))
		return
	}

	entry, err := s.entrySvc.Update(r.Context(), entryID, userID, req.Income, req.Expenses, strings.TrimSpace(req.Note))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNotFound):
			writeMessage(w, http.StatusNotFound, "Entry not found or unauthorized")
		case isValidationError(err):
			writeMessage(w, http.StatusBadRequest, err.Error())
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to update entry",
				applog.FieldOperation, applog.OpUpdate,
				applog.FieldError, err,
				applog.FieldUserID, userID,
				applog.FieldEntryID, entryID)
			writeMessage(w, http.StatusInternalServerError, "Failed to update entry")
		}
		return
	}

	writeJSON(w, http.StatusOK, entryResponse{Message: "Entry updated", Entry: entry})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Missing or invalid token")
		return
	}

	entryID, ok := entryIDFromPath(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, "Entry not found or unauthorized")
		return
	}

	if err := s.entrySvc.Delete(r.Context(), entryID, userID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "Entry not found or unauthorized")
			return
		}
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to delete entry",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldError, err,
			applog.FieldUserID, userID,
			applog.FieldEntryID, entryID)
		writeMessage(w, http.StatusInternalServerError, "Failed to delete entry")
		return
	}

	writeMessage(w, http.StatusOK, "Entry deleted")
}

func entryIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// decodeErrorMessage keeps amount errors readable while everything else
// collapses to a generic message.
func decodeErrorMessage(err error) string {
	if errors.Is(err, core.ErrInvalidAmount) {
		return core.ErrInvalidAmount.Error()
	}
	return "Invalid request body"
}
