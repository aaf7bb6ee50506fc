package handlers

import "net/http"

// DevHandler serves the development smoke-test routes behind the API key.
type DevHandler struct{}

func NewDevHandler() *DevHandler {
	return &DevHandler{}
}

// Test handles POST /v1/test
func (h *DevHandler) Test(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"text": ""})
}
