package middleware

import (
	"github.com/emicklei/go-restful/v3"
)

// ErrorResponse is the JSON body returned for every API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func HandleError(resp *restful.Response, err error, status int) {
	resp.WriteHeaderAndEntity(status, ErrorResponse{
		Error: err.Error(),
		Code:  status,
	})
}
