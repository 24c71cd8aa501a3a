package repository

import "gorm.io/gorm"

// Set bundles the transactor with every repository. It is the single store
// handle services receive, so a test can swap the whole persistence layer.
type Set struct {
	Tx           Transactor
	Productos    ProductoRepository
	MovStock     MovimientoStockRepository
	Ventas       VentaRepository
	Clientes     ClienteRepository
	Deudas       DeudaRepository
	Caja         CajaRepository
	Devoluciones DevolucionRepository
	Gastos       GastoRepository
	Eventos      EventoRepository
	Puntos       PuntosRepository
}

func NewSet(db *gorm.DB, opts TxOptions) *Set {
	return &Set{
		Tx:           NewTransactor(db, opts),
		Productos:    NewProductoRepository(db),
		MovStock:     NewMovimientoStockRepository(db),
		Ventas:       NewVentaRepository(db),
		Clientes:     NewClienteRepository(db),
		Deudas:       NewDeudaRepository(db),
		Caja:         NewCajaRepository(db),
		Devoluciones: NewDevolucionRepository(db),
		Gastos:       NewGastoRepository(db),
		Eventos:      NewEventoRepository(db),
		Puntos:       NewPuntosRepository(db),
	}
}
