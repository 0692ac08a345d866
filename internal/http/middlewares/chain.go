// Package middlewares contiene los middlewares HTTP del servicio.
//
// Convención: cada middleware es un func(http.Handler) http.Handler y
// se compone con Chain, que aplica en orden inverso para que el
// primero de la lista sea el más externo.
package middlewares

import "net/http"

// Middleware envuelve un http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain compone middlewares: Chain(h, a, b, c) == a(b(c(h))).
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
