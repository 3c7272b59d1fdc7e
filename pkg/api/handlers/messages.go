package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/utils"
	"chatdb/pkg/validation"
)

func (a *API) registerMessages(r *mux.Router) {
	r.HandleFunc("/messages", a.createMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}", a.getMessage).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", a.updateMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", a.deleteMessage).Methods(http.MethodDelete)
}

// createMessage handles POST /messages. A missing ts is stamped with
// the store clock's current time.
func (a *API) createMessage(w http.ResponseWriter, r *http.Request) {
	var m models.Message
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateMessage(m.Body, m.Role, m.Sources); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.store.CreateMessage(m)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("message_created", "id", out.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, out)
}

func (a *API) getMessage(w http.ResponseWriter, r *http.Request) {
	m, err := a.store.GetMessage(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

type messagePatchRequest struct {
	Body    *string   `json:"body,omitempty"`
	Role    *string   `json:"role,omitempty"`
	Sources *[]string `json:"sources,omitempty"`
	TS      *int64    `json:"ts,omitempty"`
}

// updateMessage handles PUT /messages/{id}. Only fields present in the
// body are changed; ts stays untouched unless explicitly supplied.
func (a *API) updateMessage(w http.ResponseWriter, r *http.Request) {
	var req messagePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	body, role := "", ""
	if req.Body != nil {
		body = *req.Body
	}
	if req.Role != nil {
		role = *req.Role
	}
	var sources []string
	if req.Sources != nil {
		sources = *req.Sources
	}
	if err := validation.ValidateMessage(body, role, sources); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.store.UpdateMessage(mux.Vars(r)["id"], store.MessagePatch{
		Body: req.Body, Role: req.Role, Sources: req.Sources, TS: req.TS,
	})
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("message_updated", "id", m.ID)
	_ = utils.JSONWrite(w, http.StatusOK, m)
}

func (a *API) deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteMessage(id); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("message_deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}
