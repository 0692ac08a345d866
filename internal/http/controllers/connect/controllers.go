// Package connect holds the HTTP controllers for the provider
// connection endpoints. Controllers translate between HTTP and the
// service layer; no flow logic lives here.
package connect

import (
	"github.com/dropDatabas3/backvault/internal/http/services/connect"
)

// Controllers aggregates every handler of the connect surface.
type Controllers struct {
	Start       *StartController
	Callback    *CallbackController
	Connections *ConnectionsController
}

// New wires all controllers over the service implementations.
func New(deps connect.Deps) *Controllers {
	return &Controllers{
		Start:       NewStartController(connect.NewStartService(deps)),
		Callback:    NewCallbackController(connect.NewCallbackService(deps)),
		Connections: NewConnectionsController(connect.NewConnectionsService(deps)),
	}
}
