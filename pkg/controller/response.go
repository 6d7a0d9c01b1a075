package controller

import (
	"net/http"

	"github.com/nimburion/docquery/pkg/server/router"
)

// ResultsResponse is the success envelope of every collections endpoint.
type ResultsResponse struct {
	Results interface{} `json:"results"`
}

// Results answers 200 with data wrapped in the results envelope.
func Results(c router.Context, data interface{}) error {
	return c.JSON(http.StatusOK, ResultsResponse{Results: data})
}

// Error answers with the status and body produced by MapError.
func Error(c router.Context, err error) error {
	statusCode, errorResponse := MapError(c.Request().Context(), err)
	return c.JSON(statusCode, errorResponse)
}
