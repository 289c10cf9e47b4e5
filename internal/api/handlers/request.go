package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cloo-solutions/docindex/internal/api"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// decodeRequest reads a JSON body into dst and validates it. On failure the
// error response is already written and false is returned.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	if fields := validationErrors(validate.Struct(dst)); fields != nil {
		api.ValidationError(w, "invalid request", fields)
		return false
	}
	return true
}

func validationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return map[string]string{"request": err.Error()}
	}
	fields := make(map[string]string, len(errs))
	for _, e := range errs {
		if e.Param() != "" {
			fields[e.Field()] = fmt.Sprintf("failed on '%s=%s'", e.Tag(), e.Param())
			continue
		}
		fields[e.Field()] = fmt.Sprintf("failed on '%s'", e.Tag())
	}
	return fields
}
