package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aerosolkit/aeronet/internal/api/models"
	"github.com/aerosolkit/aeronet/internal/api/response"
	"github.com/aerosolkit/aeronet/internal/provider/resilience"
	"github.com/aerosolkit/aeronet/pkg/aeronet"
)

// Query parameters consumed by the server rather than forwarded to AERONET.
const (
	paramAddUTC = "add_utc"
	paramAddLST = "add_lst"
	paramFormat = "format"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
)

// ObservationsHandler proxies table requests to AERONET.
type ObservationsHandler struct {
	client   *aeronet.Client
	cacheDir string
	logger   zerolog.Logger
}

// NewObservationsHandler creates a new ObservationsHandler. When cacheDir
// is non-empty, raw responses are kept there keyed by the merged query.
func NewObservationsHandler(client *aeronet.Client, cacheDir string, logger zerolog.Logger) *ObservationsHandler {
	return &ObservationsHandler{
		client:   client,
		cacheDir: cacheDir,
		logger:   logger,
	}
}

// observationsRequest is the parsed query string.
type observationsRequest struct {
	options aeronet.Options
	params  aeronet.TableParams
	format  string
}

// GetObservations handles GET /v1/observations.
func (h *ObservationsHandler) GetObservations(w http.ResponseWriter, r *http.Request) {
	req, fieldErrors := parseObservationsRequest(r.URL.Query(), bareKeys(r.URL.RawQuery))
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return
	}

	merged, err := h.client.Validate(req.options, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if h.cacheDir != "" {
		req.params.CachePath = h.cachePath(merged)
	}

	table, err := h.client.ToTable(r.Context(), req.options, req.params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if req.format == formatCSV {
		err := response.CSV(w, r, http.StatusOK, func(w http.ResponseWriter) error {
			return table.WriteCSV(w)
		})
		if err != nil {
			h.logger.Error().Err(err).Msg("failed to write csv response")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, models.Observations{
		Columns: table.Columns(),
		Count:   table.Len(),
		Rows:    table.Records(),
	})
}

// parseObservationsRequest splits the query into server parameters and
// AERONET options. Only keys given without "=" (?AOD20) default to 1.
func parseObservationsRequest(query url.Values, bare map[string]bool) (observationsRequest, []models.FieldError) {
	req := observationsRequest{
		options: aeronet.Options{},
		format:  formatJSON,
	}
	var fieldErrors []models.FieldError

	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := query[key]
		if len(values) > 1 {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   key,
				Message: "must be given once",
				Code:    models.FieldCodeInvalid,
			})
			continue
		}
		value := ""
		if len(values) == 1 {
			value = strings.TrimSpace(values[0])
		}

		switch key {
		case paramAddUTC, paramAddLST:
			on, err := parseFlag(value)
			if err != nil {
				fieldErrors = append(fieldErrors, models.FieldError{
					Field:   key,
					Message: "must be a boolean",
					Code:    models.FieldCodeInvalid,
				})
				continue
			}
			if key == paramAddUTC {
				req.params.AddUTC = on
			} else {
				req.params.AddLST = on
			}
		case paramFormat:
			switch strings.ToLower(value) {
			case "", formatJSON:
				req.format = formatJSON
			case formatCSV:
				req.format = formatCSV
			default:
				fieldErrors = append(fieldErrors, models.FieldError{
					Field:   key,
					Message: "must be json or csv",
					Code:    models.FieldCodeInvalid,
				})
			}
		default:
			if value == "" {
				if !bare[key] {
					fieldErrors = append(fieldErrors, models.FieldError{
						Field:   key,
						Message: "must not be empty",
						Code:    models.FieldCodeInvalid,
					})
					continue
				}
				value = "1"
			}
			req.options[key] = value
		}
	}

	return req, fieldErrors
}

// bareKeys returns the keys that appear in rawQuery without "=".
func bareKeys(rawQuery string) map[string]bool {
	bare := make(map[string]bool)
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" || strings.Contains(part, "=") {
			continue
		}
		key, err := url.QueryUnescape(part)
		if err != nil {
			continue
		}
		bare[key] = true
	}
	return bare
}

// parseFlag treats a bare parameter as true.
func parseFlag(value string) (bool, error) {
	if value == "" {
		return true, nil
	}
	return strconv.ParseBool(value)
}

// cachePath names the cache file after the merged, sorted query so equal
// requests share one file.
func (h *ObservationsHandler) cachePath(merged aeronet.Options) string {
	sum := sha256.Sum256([]byte(merged.Encode()))
	return filepath.Join(h.cacheDir, hex.EncodeToString(sum[:])+".csv")
}

func (h *ObservationsHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *aeronet.ValidationError

	switch {
	case errors.As(err, &validationErr):
		response.BadRequest(w, r, validationErr.Error(), validationFieldErrors(validationErr))
	case errors.Is(err, resilience.ErrCircuitOpen):
		h.logger.Warn().Err(err).Msg("aeronet circuit open")
		response.ServiceUnavailable(w, r, "AERONET is temporarily unavailable")
	case errors.Is(err, aeronet.ErrTransport):
		h.logger.Warn().Err(err).Msg("aeronet request failed")
		response.BadGateway(w, r, err.Error())
	case errors.Is(err, aeronet.ErrColumnMissing):
		response.Unprocessable(w, r, err.Error())
	case errors.Is(err, aeronet.ErrMalformedPayload):
		h.logger.Warn().Err(err).Msg("malformed aeronet payload")
		response.BadGateway(w, r, err.Error())
	default:
		h.logger.Error().Err(err).Msg("observations request failed")
		response.InternalError(w, r, "failed to load observations")
	}
}

func validationFieldErrors(err *aeronet.ValidationError) []models.FieldError {
	switch err.Kind {
	case aeronet.ValidationMissingDataType:
		return []models.FieldError{{
			Field:   "dataType",
			Message: "one of " + strings.Join(err.Keys, ", ") + " is required",
			Code:    models.FieldCodeRequired,
		}}
	case aeronet.ValidationUnknownOption:
		out := make([]models.FieldError, 0, len(err.Keys))
		for _, key := range err.Keys {
			out = append(out, models.FieldError{Field: key, Message: "unknown option", Code: models.FieldCodeUnknown})
		}
		return out
	default:
		out := make([]models.FieldError, 0, len(err.Keys))
		for _, key := range err.Keys {
			out = append(out, models.FieldError{Field: key, Message: "required", Code: models.FieldCodeRequired})
		}
		return out
	}
}
