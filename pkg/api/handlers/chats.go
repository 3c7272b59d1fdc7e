package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/store"
	"chatdb/pkg/utils"
	"chatdb/pkg/validation"
)

func (a *API) registerChats(r *mux.Router) {
	r.HandleFunc("/chats", a.createChat).Methods(http.MethodPost)
	r.HandleFunc("/chats", a.listChats).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}", a.getChat).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}", a.deleteChat).Methods(http.MethodDelete)

	r.HandleFunc("/chats/{id}/messages", a.listChatMessages).Methods(http.MethodGet)
	r.HandleFunc("/chats/{id}/messages", a.addChatMessage).Methods(http.MethodPost)
	r.HandleFunc("/chats/{id}/messages/{msgID}", a.removeChatMessage).Methods(http.MethodDelete)
}

type chatRequest struct {
	MessageIDs []string `json:"message_ids"`
}

// createChat handles POST /chats. An optional initial message list is
// linked atomically; any unknown id fails the whole call.
func (a *API) createChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
	}
	c, err := a.store.CreateChat(req.MessageIDs...)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("chat_created", "id", c.ID, "messages", len(c.Messages))
	_ = utils.JSONWrite(w, http.StatusCreated, c)
}

func (a *API) listChats(w http.ResponseWriter, r *http.Request) {
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Chats interface{} `json:"chats"`
	}{a.store.ListChats()})
}

func (a *API) getChat(w http.ResponseWriter, r *http.Request) {
	c, err := a.store.GetChat(mux.Vars(r)["id"])
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, c)
}

func (a *API) deleteChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.store.DeleteChat(id); err != nil {
		writeStoreErr(w, err)
		return
	}
	logger.Info("chat_deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// listChatMessages handles GET /chats/{id}/messages and returns the
// hydrated message records in link order, one entry per occurrence.
func (a *API) listChatMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ids, err := a.store.ChatMessages(id)
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	out := make([]models.Message, 0, len(ids))
	for _, mid := range ids {
		m, err := a.store.GetMessage(mid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			writeStoreErr(w, err)
			return
		}
		out = append(out, m)
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Chat     string           `json:"chat"`
		Messages []models.Message `json:"messages"`
	}{Chat: id, Messages: out})
}

type chatMessageRequest struct {
	// MessageID links an existing message when set.
	MessageID string `json:"message_id,omitempty"`
	// Otherwise a new message is created from the fields below and
	// linked in the same request.
	Body    string   `json:"body,omitempty"`
	Role    string   `json:"role,omitempty"`
	Sources []string `json:"sources,omitempty"`
	TS      int64    `json:"ts,omitempty"`
}

// addChatMessage handles POST /chats/{id}/messages. Either links an
// existing message by id or creates one and links it.
func (a *API) addChatMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.MessageID != "" {
		if err := a.store.LinkMessageToChat(chatID, req.MessageID); err != nil {
			writeStoreErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := validation.ValidateMessage(req.Body, req.Role, req.Sources); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Reject unknown chats before creating the message so a failed link
	// cannot leave a stray record behind.
	if _, err := a.store.GetChat(chatID); err != nil {
		writeStoreErr(w, err)
		return
	}
	m, err := a.store.CreateMessage(models.Message{
		Body: req.Body, Role: req.Role, Sources: req.Sources, TS: req.TS,
	})
	if err != nil {
		writeStoreErr(w, err)
		return
	}
	if err := a.store.LinkMessageToChat(chatID, m.ID); err != nil {
		// chat deleted between the check and the link; drop the record
		_ = a.store.DeleteMessage(m.ID)
		writeStoreErr(w, err)
		return
	}
	logger.Info("chat_message_created", "chat", chatID, "id", m.ID)
	_ = utils.JSONWrite(w, http.StatusCreated, m)
}

// removeChatMessage handles DELETE /chats/{id}/messages/{msgID}. It
// unlinks one occurrence; the message record itself survives.
func (a *API) removeChatMessage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.store.UnlinkMessageFromChat(vars["id"], vars["msgID"]); err != nil {
		writeStoreErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
