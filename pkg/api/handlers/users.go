package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/logger"
	"chatdb/pkg/utils"
	"chatdb/pkg/validation"
)

func (a *API) registerUsers(r *mux.Router) {
	r.HandleFunc("/users", a.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users", a.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", a.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}", a.renameUser).Methods(http.MethodPut)
	r.HandleFunc("/users/{id}", a.deleteUser).Methods(http.MethodDelete)

	r.HandleFunc("/users/{id}/chats", a.listUserChats).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/chats", a.linkChat).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/chats/{chatID}", a.unlinkChat).Methods(http.MethodDelete)
}

type userRequest struct {
	Name string `json:"name"`
}

// createUser handles POST /users. A duplicate live name yields 409.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateUserName(req.Name); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.store.CreateUser(req.Name)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("user_created", "id", u.ID, "name", u.Name)
	_ = utils.JSONWrite(w, http.StatusCreated, u)
}

// listUsers handles GET /users. With ?name= it resolves exactly one
// user through the name index, mirroring lookup-by-username semantics.
func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		u, err := a.store.GetUserByName(name)
		if err != nil {
			writeStoreErr(w, err)
			return
		}
		_ = utils.JSONWrite(w, http.StatusOK, u)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Users interface{} `json:"users"`
	}{a.store.ListUsers()})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.store.GetUser(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

// renameUser handles PUT /users/{id}. Renaming to the current name is
// a no-op success.
func (a *API) renameUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.ValidateUserName(req.Name); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.store.RenameUser(mux.Vars(r)["id"], req.Name)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("user_renamed", "id", u.ID, "name", u.Name)
	_ = utils.JSONWrite(w, http.StatusOK, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteUser(id); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("user_deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listUserChats(w http.ResponseWriter, r *http.Request) {
	chats, err := a.store.UserChats(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Chats []string `json:"chats"`
	}{chats})
}

type linkChatRequest struct {
	ChatID string `json:"chat_id"`
}

// linkChat handles POST /users/{id}/chats. The same chat may be linked
// more than once; each call appends one occurrence.
func (a *API) linkChat(w http.ResponseWriter, r *http.Request) {
	var req linkChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == "" {
		utils.JSONError(w, http.StatusBadRequest, "chat_id is required")
		return
	}
	if err := a.store.LinkChatToUser(mux.Vars(r)["id"], req.ChatID); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// unlinkChat handles DELETE /users/{id}/chats/{chatID}. Removing an
// absent link succeeds without effect.
func (a *API) unlinkChat(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.store.UnlinkChatFromUser(vars["id"], vars["chatID"]); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
