package model

// MetodoPago is the tender used to settle money against a register.
type MetodoPago string

const (
	MetodoEfectivo      MetodoPago = "efectivo"
	MetodoDebito        MetodoPago = "debito"
	MetodoCredito       MetodoPago = "credito"
	MetodoTransferencia MetodoPago = "transferencia"
)

var MetodosPago = []MetodoPago{MetodoEfectivo, MetodoDebito, MetodoCredito, MetodoTransferencia}

func (m MetodoPago) Valido() bool {
	for _, v := range MetodosPago {
		if v == m {
			return true
		}
	}
	return false
}
