// Package errors define el catálogo de errores de la API y su
// serialización JSON. Los handlers nunca arman errores ad hoc:
// eligen uno del catálogo y le agregan detalle.
package errors

import "fmt"

// AppError es un error de aplicación con mapeo directo a HTTP.
type AppError struct {
	// Code es el código estable que consumen los clientes.
	Code string `json:"code"`
	// Message es el mensaje para humanos.
	Message string `json:"message"`
	// HTTPStatus es el status de respuesta. No se serializa.
	HTTPStatus int `json:"-"`
	// Detail agrega contexto opcional (qué parámetro, qué provider).
	Detail string `json:"detail,omitempty"`
	// Cause es el error subyacente. Solo para logs, nunca va al cliente.
	Cause error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail retorna una copia con detalle. El original no se toca:
// los errores del catálogo son compartidos.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause retorna una copia con causa.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Cause = err
	return &c
}
