package simulator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"devicelink/pkg/alpaca"
)

var txCounter atomic.Uint32

// formValue looks up an Alpaca parameter. Parameter names are case
// insensitive.
func formValue(r *http.Request, name string) (string, bool) {
	if err := r.ParseForm(); err != nil {
		return "", false
	}
	for param, values := range r.Form {
		if strings.EqualFold(param, name) && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

func clientTxID(r *http.Request) (uint32, error) {
	value, ok := formValue(r, "ClientTransactionID")
	if !ok {
		return 0, nil
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, errors.New("ClientTransactionID must be a non-negative integer")
	}
	return uint32(id), nil
}

func handleResponse(w http.ResponseWriter, r *http.Request, value any) {
	writeResponse(w, r, alpaca.Response{Value: value})
}

// handleError reports err in the Alpaca envelope. Device errors keep their
// ASCOM number; anything else is unspecified.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var ae *alpaca.Error
	if !errors.As(err, &ae) {
		ae = &alpaca.Error{Number: alpaca.ErrorUnspecified, Message: err.Error()}
	}
	writeResponse(w, r, alpaca.Response{ErrorNumber: ae.Number, ErrorMessage: ae.Message})
}

func writeResponse(w http.ResponseWriter, r *http.Request, response alpaca.Response) {
	txID, err := clientTxID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	response.ClientTransactionID = txID
	response.ServerTransactionID = txCounter.Add(1)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func parseFloat(r *http.Request, name string) (float64, error) {
	value, ok := formValue(r, name)
	if !ok {
		return 0, alpaca.ErrInvalidValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, alpaca.ErrInvalidValue
	}
	return f, nil
}

func parseBool(r *http.Request, name string) (bool, error) {
	value, ok := formValue(r, name)
	if !ok {
		return false, alpaca.ErrInvalidValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, alpaca.ErrInvalidValue
	}
	return b, nil
}
