package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// fallbackErrorBody is served when a response value cannot be marshaled.
// Raw JSON, so this path cannot itself fail.
const fallbackErrorBody = `{"status":"error","message":"Internal server error"}`

// writeJSONResponse writes a JSON response with the given status code.
// Marshaling happens before any header goes out, so an encoding failure can
// still downgrade the status to 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		data = []byte(fallbackErrorBody)
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", err)
	}
}
