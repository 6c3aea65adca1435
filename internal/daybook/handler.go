package handler

import (
	"encoding/json"
	"net/http"

	"dumpzone/internal/daybook/model"
	"dumpzone/internal/daybook/service"
	"dumpzone/middleware"
	"dumpzone/pkg/logger"
)

type DaybookHandler struct {
	Service *service.DaybookService
}

func NewDaybookHandler(service *service.DaybookService) *DaybookHandler {
	return &DaybookHandler{Service: service}
}

// Day serves the current-day document: GET reads it, PUT upserts it,
// DELETE clears the slot.
func (h *DaybookHandler) Day(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getDay(w, r)
	case http.MethodPut:
		h.saveDay(w, r)
	case http.MethodDelete:
		h.clearDay(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DaybookHandler) getDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "Missing date parameter", http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)

	doc, err := h.Service.GetDay(userID, date)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to get day %s: %v", date, err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "No document for that day", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (h *DaybookHandler) saveDay(w http.ResponseWriter, r *http.Request) {
	var req model.SaveDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)

	resp, err := h.Service.SaveDay(userID, req)
	if err != nil {
		logger.Sugar.Errorf("Error saving day: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *DaybookHandler) clearDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		http.Error(w, "Missing date parameter", http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)

	if err := h.Service.ClearDay(userID, date); err != nil {
		logger.Sugar.Errorf("Handler: Failed to clear day %s: %v", date, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Day cleared"))
}

// Entries serves the history list: GET lists, POST archives a new entry.
func (h *DaybookHandler) Entries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listEntries(w, r)
	case http.MethodPost:
		h.addEntry(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *DaybookHandler) listEntries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	entries, err := h.Service.ListEntries(userID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching entries: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *DaybookHandler) addEntry(w http.ResponseWriter, r *http.Request) {
	var entry model.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)

	if err := h.Service.AddEntry(userID, &entry); err != nil {
		logger.Sugar.Errorf("Handler: Failed to add entry: %v", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (h *DaybookHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	var update model.EntryUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)

	ok, err := h.Service.UpdateEntry(userID, entryID, update)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to update entry %s: %v", entryID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Entry updated"))
}

func (h *DaybookHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entryID := r.URL.Query().Get("id")
	if entryID == "" {
		http.Error(w, "Missing id parameter", http.StatusBadRequest)
		return
	}

	userID := middleware.UserID(r)

	ok, err := h.Service.DeleteEntry(userID, entryID)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete entry %s: %v", entryID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Entry deleted"))
}
