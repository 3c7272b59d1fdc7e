package store

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opCreateUser    = "create_user"
	opRenameUser    = "rename_user"
	opGetUser       = "get_user"
	opDeleteUser    = "delete_user"
	opCreateChat    = "create_chat"
	opGetChat       = "get_chat"
	opDeleteChat    = "delete_chat"
	opCreateMessage = "create_message"
	opUpdateMessage = "update_message"
	opGetMessage    = "get_message"
	opDeleteMessage = "delete_message"
	opLinkChat      = "link_chat_to_user"
	opUnlinkChat    = "unlink_chat_from_user"
	opLinkMessage   = "link_message_to_chat"
	opUnlinkMessage = "unlink_message_from_chat"
)

var opsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chatdb_store_ops_total",
		Help: "Store operations by name and outcome.",
	},
	[]string{"op", "outcome"},
)

func init() {
	prometheus.MustRegister(opsTotal)
}

// observe classifies an operation result into a stable outcome label.
func observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrConstraintViolation):
		outcome = "constraint_violation"
	case errors.Is(err, ErrDanglingReference):
		outcome = "dangling_reference"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	default:
		outcome = "error"
	}
	opsTotal.WithLabelValues(op, outcome).Inc()
}
