package handlers

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"genesis-login/pkg/errors"
)

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, err error) {
	var svcErr *errors.ServiceError
	if !stderrors.As(err, &svcErr) {
		svcErr = errors.ErrInternalServer
	}

	body := map[string]string{
		"error":             svcErr.Code,
		"error_description": svcErr.Message,
	}
	if svcErr.Details != "" {
		body["details"] = svcErr.Details
	}

	sendJSON(w, svcErr.Status, body)
}
