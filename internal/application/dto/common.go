package dto

// ErrorResponse cuerpo de error HTTP.
// Code: VALIDATION, SCHEMA, CREDENTIAL, REJECTED, SRI_UNAVAILABLE, NOT_FOUND, SIGNING, INTERNAL
// o los del middleware de autenticación.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
