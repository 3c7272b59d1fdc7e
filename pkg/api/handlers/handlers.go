// Package handlers exposes the record store over HTTP. Routes are
// grouped per record kind; every handler returns JSON and maps typed
// store failures onto stable status codes.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"chatdb/pkg/store"
	"chatdb/pkg/utils"
)

// API binds the HTTP surface to one store instance.
type API struct {
	store *store.Store
}

func New(s *store.Store) *API {
	return &API{store: s}
}

// Register attaches all routes to the provided router.
func (a *API) Register(r *mux.Router) {
	a.registerUsers(r)
	a.registerChats(r)
	a.registerMessages(r)
}

// writeStoreErr maps the store error taxonomy onto HTTP status codes:
// unknown id -> 404, name conflict -> 409, dangling link target -> 422.
func writeStoreErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConstraintViolation):
		utils.JSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrDanglingReference):
		utils.JSONError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}
