package infra

import (
	"fmt"
	"net/smtp"
	"strings"

	"smartpos/internal/config"
	"smartpos/internal/dto"

	"github.com/jordan-wright/email"
)

// Mailer sends low-stock alerts to the store's purchasing inbox.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	to       []string
	send     func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewMailer returns nil when SMTP or the recipient list is not configured.
func NewMailer(cfg *config.Config) *Mailer {
	if cfg.SMTPHost == "" || cfg.AlertasEmailTo == "" {
		return nil
	}
	var to []string
	for _, addr := range strings.Split(cfg.AlertasEmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       to,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// EnviarAlertaStock mails a single low-stock alert.
func (m *Mailer) EnviarAlertaStock(a dto.AlertaStock) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = m.to
	e.Subject = fmt.Sprintf("Stock bajo: %s (%d u.)", a.Nombre, a.StockActual)
	e.Text = []byte(fmt.Sprintf(
		"El producto %s (codigo %s) quedo con %d unidades, minimo configurado %d.\nVenta: %s\nFecha: %s\n",
		a.Nombre, a.CodigoBarras, a.StockActual, a.StockMinimo, a.VentaID, a.Fecha,
	))

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.password, m.host)
	}
	if err := m.send(e, m.addr, auth); err != nil {
		return fmt.Errorf("mailer: alerta stock: %w", err)
	}
	return nil
}
