package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// TipoCategoria discriminates the category-specific attribute set of a product.
type TipoCategoria string

const (
	CategoriaAlimento     TipoCategoria = "alimento"
	CategoriaElectronica  TipoCategoria = "electronica"
	CategoriaIndumentaria TipoCategoria = "indumentaria"
	CategoriaGeneral      TipoCategoria = "general"
)

// AtributosCategoria is the closed set of per-category attribute variants.
// Each product carries exactly one variant, selected by its Categoria.
type AtributosCategoria interface {
	Categoria() TipoCategoria
	Validar() error
}

type AtributosAlimento struct {
	Perecedero   bool `json:"perecedero"`
	DiasVidaUtil int  `json:"dias_vida_util"`
	Refrigerado  bool `json:"refrigerado"`
}

func (AtributosAlimento) Categoria() TipoCategoria { return CategoriaAlimento }

func (a AtributosAlimento) Validar() error {
	if a.Perecedero && a.DiasVidaUtil <= 0 {
		return errors.New("un alimento perecedero requiere dias_vida_util > 0")
	}
	return nil
}

type AtributosElectronica struct {
	Marca         string `json:"marca"`
	Modelo        string `json:"modelo"`
	GarantiaMeses int    `json:"garantia_meses"`
}

func (AtributosElectronica) Categoria() TipoCategoria { return CategoriaElectronica }

func (a AtributosElectronica) Validar() error {
	if strings.TrimSpace(a.Marca) == "" {
		return errors.New("marca es obligatoria para electronica")
	}
	if a.GarantiaMeses < 0 {
		return errors.New("garantia_meses no puede ser negativa")
	}
	return nil
}

type AtributosIndumentaria struct {
	Talle     string `json:"talle"`
	Color     string `json:"color"`
	Temporada string `json:"temporada,omitempty"`
}

func (AtributosIndumentaria) Categoria() TipoCategoria { return CategoriaIndumentaria }

func (a AtributosIndumentaria) Validar() error {
	if strings.TrimSpace(a.Talle) == "" {
		return errors.New("talle es obligatorio para indumentaria")
	}
	return nil
}

type AtributosGeneral struct{}

func (AtributosGeneral) Categoria() TipoCategoria { return CategoriaGeneral }
func (AtributosGeneral) Validar() error           { return nil }

// Atributos is the column wrapper that persists a variant as
// {"tipo": "...", "datos": {...}} in a jsonb column.
type Atributos struct {
	Valor AtributosCategoria
}

type atributosEnvelope struct {
	Tipo  TipoCategoria   `json:"tipo"`
	Datos json.RawMessage `json:"datos"`
}

// DecodeAtributos builds the variant for tipo from its raw JSON payload.
func DecodeAtributos(tipo TipoCategoria, datos []byte) (AtributosCategoria, error) {
	var v AtributosCategoria
	switch tipo {
	case CategoriaAlimento:
		v = &AtributosAlimento{}
	case CategoriaElectronica:
		v = &AtributosElectronica{}
	case CategoriaIndumentaria:
		v = &AtributosIndumentaria{}
	case CategoriaGeneral, "":
		return AtributosGeneral{}, nil
	default:
		return nil, fmt.Errorf("categoria desconocida %q", tipo)
	}
	if len(datos) > 0 && string(datos) != "null" {
		if err := json.Unmarshal(datos, v); err != nil {
			return nil, fmt.Errorf("atributos %s: %w", tipo, err)
		}
	}
	// return value types so that type switches see one shape
	switch a := v.(type) {
	case *AtributosAlimento:
		return *a, nil
	case *AtributosElectronica:
		return *a, nil
	case *AtributosIndumentaria:
		return *a, nil
	}
	return v, nil
}

func (a Atributos) MarshalJSON() ([]byte, error) {
	v := a.Valor
	if v == nil {
		v = AtributosGeneral{}
	}
	datos, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(atributosEnvelope{Tipo: v.Categoria(), Datos: datos})
}

func (a *Atributos) UnmarshalJSON(b []byte) error {
	var env atributosEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	v, err := DecodeAtributos(env.Tipo, env.Datos)
	if err != nil {
		return err
	}
	a.Valor = v
	return nil
}

func (a Atributos) Value() (driver.Value, error) {
	b, err := a.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Atributos) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		a.Valor = AtributosGeneral{}
		return nil
	case []byte:
		return a.UnmarshalJSON(v)
	case string:
		return a.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("atributos: tipo no soportado %T", src)
	}
}
