package types

import "strconv"

const (
	StatusOK                  = 200
	StatusCreated             = 201
	StatusAccepted            = 202
	StatusNoContent           = 204
	StatusPartialContent      = 206
	StatusMultipleChoices     = 300
	StatusMovedPermanently    = 301
	StatusFound               = 302
	StatusNotModified         = 304
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusRequestTooLarge     = 413
	StatusRangeNotSatisfiable = 416
	StatusInternalServerError = 500
	StatusNotImplemented      = 501
	StatusBadGateway          = 502
	StatusServiceUnavailable  = 503
)

var statusText = map[int]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusAccepted:            "Accepted",
	StatusNoContent:           "No Content",
	StatusPartialContent:      "Partial Content",
	StatusMultipleChoices:     "Multiple Choices",
	StatusMovedPermanently:    "Moved Permanently",
	StatusFound:               "Moved Temporarily",
	StatusNotModified:         "Not Modified",
	StatusBadRequest:          "Bad Request",
	StatusUnauthorized:        "Unauthorized",
	StatusForbidden:           "Forbidden",
	StatusNotFound:            "Not Found",
	StatusMethodNotAllowed:    "Method Not Allowed",
	StatusRequestTooLarge:     "Request Entity Too Large",
	StatusRangeNotSatisfiable: "Range Not Satisfiable",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
	StatusBadGateway:          "Bad Gateway",
	StatusServiceUnavailable:  "Service Unavailable",
}

// StatusText returns the reason phrase for code, or "" when code is not in
// the known set.
func StatusText(code int) string {
	return statusText[code]
}

// StatusLine renders "HTTP/1.0 <code> <reason>\r\n". Codes without a known
// reason, including ones outside 100-599, are written as "HTTP/1.0 <code>\r\n".
func StatusLine(code int) string {
	text, ok := statusText[code]
	if !ok {
		return "HTTP/1.0 " + strconv.Itoa(code) + "\r\n"
	}
	return "HTTP/1.0 " + strconv.Itoa(code) + " " + text + "\r\n"
}
