package handler

import (
	"net/http"

	"github.com/aerosolkit/aeronet/internal/api/models"
	"github.com/aerosolkit/aeronet/internal/api/response"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

// OptionsHandler describes the accepted query options.
type OptionsHandler struct {
	client *aeronet.Client
}

// NewOptionsHandler creates a new OptionsHandler.
func NewOptionsHandler(client *aeronet.Client) *OptionsHandler {
	return &OptionsHandler{client: client}
}

// ListOptions handles GET /v1/options.
func (h *OptionsHandler) ListOptions(w http.ResponseWriter, r *http.Request) {
	groups := models.OptionGroups{
		Required:  aeronet.RequiredOptions(),
		DataTypes: aeronet.DataTypes(),
		Optional:  aeronet.OptionalOptions(),
		Defaults:  h.client.DefaultOptions(),
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, groups)
}
