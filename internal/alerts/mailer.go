// Package alerts envía avisos operativos por correo cuando una
// conexión de backup muere y los uploads van a empezar a fallar.
package alerts

import (
	"fmt"
	"time"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/backvault/internal/config"
	"github.com/dropDatabas3/backvault/internal/observability/logger"
)

// Mailer manda alertas vía SMTP. Un Mailer nil es un no-op válido:
// los callers no necesitan chequear si las alertas están habilitadas.
type Mailer struct {
	dialer *mail.Dialer
	from   string
	to     []string
}

// New crea un Mailer, o nil si las alertas están deshabilitadas o
// falta configuración SMTP.
func New(smtp config.SMTPConfig, alerts config.AlertsConfig) *Mailer {
	if !alerts.Enabled || len(alerts.To) == 0 || smtp.Host == "" {
		return nil
	}
	d := mail.NewDialer(smtp.Host, smtp.Port, smtp.Username, smtp.Password)
	d.Timeout = 10 * time.Second

	from := smtp.From
	if from == "" {
		from = smtp.Username
	}
	return &Mailer{dialer: d, from: from, to: alerts.To}
}

// ConnectionLost avisa que la conexión con un provider quedó inválida
// y hay que reconectar. Best effort: se loguea la falla y se sigue.
func (m *Mailer) ConnectionLost(provider string) {
	if m == nil {
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", fmt.Sprintf("[backvault] conexión con %s caída", provider))
	msg.SetBody("text/plain", fmt.Sprintf(
		"La conexión OAuth con %s fue invalidada por el provider.\n\n"+
			"Los backups hacia ese destino van a fallar hasta que alguien "+
			"reconecte la cuenta desde el dashboard.\n\n"+
			"Detectado: %s\n", provider, time.Now().UTC().Format(time.RFC3339)))

	if err := m.dialer.DialAndSend(msg); err != nil {
		logger.L().Warn("no se pudo enviar la alerta de conexión caída",
			logger.Component("alerts"),
			logger.Provider(provider),
			logger.Err(err))
	}
}
