package service

import (
	"errors"
	"time"

	"smartpos/internal/apierror"
	"smartpos/internal/config"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reglas are the business parameters services read from configuration.
type Reglas struct {
	Lealtad           config.Lealtad
	DiasGraciaDefault int
}

func ReglasDesdeConfig(cfg *config.Config) Reglas {
	return Reglas{Lealtad: cfg.Lealtad(), DiasGraciaDefault: cfg.DiasGraciaDefault}
}

func ReglasDefault() Reglas {
	return Reglas{Lealtad: config.LealtadDefault(), DiasGraciaDefault: 30}
}

// ── Money ─────────────────────────────────────────────────────────────────────

var (
	cero    = decimal.Zero
	cien    = decimal.NewFromInt(100)
	epsilon = decimal.New(5, -3) // half a cent
)

func redondear(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func minDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// esCero treats sub-cent residue as zero.
func esCero(d decimal.Decimal) bool { return d.Abs().LessThan(epsilon) }

// desglosarIVA splits a tax-included amount into its net part.
func desglosarIVA(bruto, alicuota decimal.Decimal) decimal.Decimal {
	return redondear(bruto.Div(decimal.NewFromInt(1).Add(alicuota.Div(cien))))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func notFound(err error, recurso, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apierror.NotFound(recurso, id)
	}
	return err
}

func fechaISO(t time.Time) string { return t.Format(time.RFC3339) }

func ptrFecha(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := fechaISO(*t)
	return &s
}

type uuidStringer interface{ String() string }

func ptrString[T uuidStringer](v *T) *string {
	if v == nil {
		return nil
	}
	s := (*v).String()
	return &s
}
