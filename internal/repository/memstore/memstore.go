// Package memstore is an in-memory repository.Set for tests. Transactions are
// serialized by a single mutex and roll back by restoring a snapshot, so a
// failed unit of work leaves no trace, as with the real store.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"smartpos/internal/dto"
	"smartpos/internal/infra"
	"smartpos/internal/model"
	"smartpos/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type data struct {
	productos    map[uuid.UUID]model.Producto
	movStock     []model.MovimientoStock
	ventas       map[uuid.UUID]model.Venta
	items        map[uuid.UUID][]model.VentaItem
	ticket       int
	clientes     map[uuid.UUID]model.Cliente
	deudas       map[uuid.UUID]model.Deuda
	pagosDeuda   []model.PagoDeuda
	sesiones     map[uuid.UUID]model.SesionCaja
	movCaja      []model.MovimientoCaja
	devoluciones []model.Devolucion
	gastos       map[uuid.UUID]model.Gasto
	pagosGasto   []model.PagoGasto
	eventos      map[string]model.EventoPendiente
	puntos       []model.MovimientoPuntos
}

func newData() *data {
	return &data{
		productos: map[uuid.UUID]model.Producto{},
		ventas:    map[uuid.UUID]model.Venta{},
		items:     map[uuid.UUID][]model.VentaItem{},
		clientes:  map[uuid.UUID]model.Cliente{},
		deudas:    map[uuid.UUID]model.Deuda{},
		sesiones:  map[uuid.UUID]model.SesionCaja{},
		gastos:    map[uuid.UUID]model.Gasto{},
		eventos:   map[string]model.EventoPendiente{},
	}
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	c := &data{
		productos:    copyMap(d.productos),
		movStock:     append([]model.MovimientoStock(nil), d.movStock...),
		ventas:       copyMap(d.ventas),
		items:        make(map[uuid.UUID][]model.VentaItem, len(d.items)),
		ticket:       d.ticket,
		clientes:     copyMap(d.clientes),
		deudas:       copyMap(d.deudas),
		pagosDeuda:   append([]model.PagoDeuda(nil), d.pagosDeuda...),
		sesiones:     copyMap(d.sesiones),
		movCaja:      append([]model.MovimientoCaja(nil), d.movCaja...),
		devoluciones: append([]model.Devolucion(nil), d.devoluciones...),
		gastos:       copyMap(d.gastos),
		pagosGasto:   append([]model.PagoGasto(nil), d.pagosGasto...),
		eventos:      copyMap(d.eventos),
		puntos:       append([]model.MovimientoPuntos(nil), d.puntos...),
	}
	for k, v := range d.items {
		c.items[k] = append([]model.VentaItem(nil), v...)
	}
	return c
}

// Store holds every table. Repository methods assume the caller holds mu:
// Transaction takes it, and tests only call non-transactional methods
// directly while no transaction is running.
type Store struct {
	mu   sync.Mutex
	d    *data
	now  func() time.Time
	fail error
}

func New() *Store {
	return &Store{d: newData(), now: time.Now}
}

// FailNextCommit makes the next transaction roll back with err after its
// unit of work succeeded, as a driver timeout at commit would.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.d.clone()
	err := ctx.Err()
	if err == nil {
		err = fn(nil)
	}
	if err == nil && s.fail != nil {
		err, s.fail = s.fail, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.d = snap
	}
	return infra.ClassifyTxError(ctx, err)
}

// SetClock pins the time used for rows written without a timestamp.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Set wires every in-memory repository into a repository.Set.
func (s *Store) Set() *repository.Set {
	return &repository.Set{
		Tx:           s,
		Productos:    productos{s},
		MovStock:     movStock{s},
		Ventas:       ventas{s},
		Clientes:     clientes{s},
		Deudas:       deudas{s},
		Caja:         caja{s},
		Devoluciones: devoluciones{s},
		Gastos:       gastos{s},
		Eventos:      eventos{s},
		Puntos:       puntos{s},
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func stamp(t *time.Time, now time.Time) {
	if t.IsZero() {
		*t = now
	}
}

// ── Seed helpers ──────────────────────────────────────────────────────────────

// SeedProducto inserts p and, when it has stock, the entrada movement that
// keeps the stock ledger consistent.
func (s *Store) SeedProducto(p model.Producto) model.Producto {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.d.productos[p.ID] = p
	if p.StockActual != 0 {
		s.d.movStock = append(s.d.movStock, model.MovimientoStock{
			ID: uuid.New(), ProductoID: p.ID, Tipo: model.StockEntrada,
			Cantidad: p.StockActual, CostoUnitario: p.PrecioCosto,
			StockNuevo: p.StockActual, Motivo: "seed", CreatedAt: s.now(),
		})
	}
	return p
}

func (s *Store) SeedCliente(c model.Cliente) model.Cliente {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.d.clientes[c.ID] = c
	return c
}

func (s *Store) SeedDeuda(d model.Deuda) model.Deuda {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	s.d.deudas[d.ID] = d
	return d
}

// ── Inspection helpers ────────────────────────────────────────────────────────

func (s *Store) Producto(id uuid.UUID) model.Producto {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.productos[id]
}

func (s *Store) Cliente(id uuid.UUID) model.Cliente {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.clientes[id]
}

func (s *Store) Deuda(id uuid.UUID) model.Deuda {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.deudas[id]
}

func (s *Store) Venta(id uuid.UUID) model.Venta {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.d.ventas[id]
	v.Items = append([]model.VentaItem(nil), s.d.items[id]...)
	return v
}

func (s *Store) Ventas() []model.Venta {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Venta, 0, len(s.d.ventas))
	for _, v := range s.d.ventas {
		out = append(out, v)
	}
	return out
}

func (s *Store) MovimientosCaja() []model.MovimientoCaja {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.MovimientoCaja(nil), s.d.movCaja...)
}

func (s *Store) MovimientosStock(productoID uuid.UUID) []model.MovimientoStock {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MovimientoStock
	for _, m := range s.d.movStock {
		if m.ProductoID == productoID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) Eventos(tipo model.TipoEvento) []model.EventoPendiente {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.EventoPendiente
	for _, e := range s.d.eventos {
		if e.Tipo == tipo {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Clave < out[j].Clave })
	return out
}

func (s *Store) MovimientosPuntos(clienteID uuid.UUID) []model.MovimientoPuntos {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MovimientoPuntos
	for _, m := range s.d.puntos {
		if m.ClienteID == clienteID {
			out = append(out, m)
		}
	}
	return out
}

// SetSesion overwrites a register session, e.g. to corrupt it for audit tests.
func (s *Store) SetSesion(ses model.SesionCaja) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.sesiones[ses.ID] = ses
}

// SeedEvento writes an outbox row as if a committed transaction produced it.
func (s *Store) SeedEvento(e model.EventoPendiente) model.EventoPendiente {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Estado == "" {
		e.Estado = model.EventoPendienteEstado
	}
	s.d.eventos[e.Clave] = e
	return e
}

// SetProducto overwrites a product row without touching the stock ledger.
func (s *Store) SetProducto(p model.Producto) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.d.productos[p.ID] = p
}

// ── Productos ─────────────────────────────────────────────────────────────────

type productos struct{ s *Store }

func (r productos) Create(_ context.Context, p *model.Producto) error { return r.CreateTx(nil, p) }

func (r productos) CreateTx(_ *gorm.DB, p *model.Producto) error {
	for _, o := range r.s.d.productos {
		if o.CodigoBarras == p.CodigoBarras {
			return uniqueViolation("productos_codigo_barras_key")
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	stamp(&p.CreatedAt, r.s.now())
	r.s.d.productos[p.ID] = *p
	return nil
}

func (r productos) FindByID(_ context.Context, id uuid.UUID) (*model.Producto, error) {
	return r.FindByIDForUpdateTx(nil, id)
}

func (r productos) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Producto, error) {
	p, ok := r.s.d.productos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r productos) UpdateStockTx(_ *gorm.DB, id uuid.UUID, delta int) error {
	p, ok := r.s.d.productos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.StockActual += delta
	r.s.d.productos[id] = p
	return nil
}

func (r productos) List(_ context.Context, f dto.ProductoFilter) ([]model.Producto, int64, error) {
	var out []model.Producto
	for _, p := range r.sorted() {
		if !p.Activo || (f.Categoria != "" && string(p.Categoria) != f.Categoria) || (f.BajoMinimo && !p.BajoMinimo()) {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (r productos) ListAll(context.Context) ([]model.Producto, error) { return r.sorted(), nil }

func (r productos) sorted() []model.Producto {
	out := make([]model.Producto, 0, len(r.s.d.productos))
	for _, p := range r.s.d.productos {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out
}

// ── Movimientos de stock ──────────────────────────────────────────────────────

type movStock struct{ s *Store }

func (r movStock) CreateTx(_ *gorm.DB, m *model.MovimientoStock) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	stamp(&m.CreatedAt, r.s.now())
	r.s.d.movStock = append(r.s.d.movStock, *m)
	return nil
}

func (r movStock) List(_ context.Context, f repository.MovimientoStockFilter) ([]model.MovimientoStock, int64, error) {
	var out []model.MovimientoStock
	for _, m := range r.s.d.movStock {
		if (f.ProductoID != nil && m.ProductoID != *f.ProductoID) || (f.Tipo != "" && string(m.Tipo) != f.Tipo) {
			continue
		}
		out = append(out, m)
	}
	return out, int64(len(out)), nil
}

func (r movStock) SumPorProducto(context.Context) (map[uuid.UUID]int, error) {
	out := map[uuid.UUID]int{}
	for _, m := range r.s.d.movStock {
		out[m.ProductoID] += m.Cantidad
	}
	return out, nil
}

// ── Ventas ────────────────────────────────────────────────────────────────────

type ventas struct{ s *Store }

func (r ventas) CreateTx(_ *gorm.DB, v *model.Venta) error {
	h := *v
	h.Items = nil
	r.s.d.ventas[v.ID] = h
	return nil
}

func (r ventas) UpdateTx(_ *gorm.DB, v *model.Venta) error {
	if _, ok := r.s.d.ventas[v.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	return r.CreateTx(nil, v)
}

func (r ventas) CreateItemsTx(_ *gorm.DB, items []model.VentaItem) error {
	for _, it := range items {
		it.Producto = nil
		r.s.d.items[it.VentaID] = append(r.s.d.items[it.VentaID], it)
	}
	return nil
}

func (r ventas) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	v, ok := r.s.d.ventas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	v.Items = nil
	return &v, nil
}

func (r ventas) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	v, ok := r.s.d.ventas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	v.Items = append([]model.VentaItem(nil), r.s.d.items[id]...)
	return &v, nil
}

func (r ventas) UpdateItemDevueltoTx(_ *gorm.DB, itemID uuid.UUID, cantidad int) error {
	for ventaID, items := range r.s.d.items {
		for i := range items {
			if items[i].ID == itemID {
				items[i].CantidadDevuelta = cantidad
				r.s.d.items[ventaID] = items
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r ventas) NextTicketNumber(*gorm.DB) (int, error) {
	r.s.d.ticket++
	return r.s.d.ticket, nil
}

func (r ventas) withItems(v model.Venta) model.Venta {
	v.Items = nil
	for _, it := range r.s.d.items[v.ID] {
		if p, ok := r.s.d.productos[it.ProductoID]; ok {
			it.Producto = &p
		}
		v.Items = append(v.Items, it)
	}
	return v
}

func (r ventas) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	v, ok := r.s.d.ventas[id]
	if !ok || v.Estado != model.VentaFinalizada {
		return nil, gorm.ErrRecordNotFound
	}
	v = r.withItems(v)
	return &v, nil
}

func (r ventas) List(_ context.Context, f dto.VentaFilter) ([]model.Venta, int64, error) {
	var out []model.Venta
	for _, v := range r.s.d.ventas {
		switch {
		case v.Estado != model.VentaFinalizada,
			f.ClienteID != "" && (v.ClienteID == nil || v.ClienteID.String() != f.ClienteID),
			f.EstadoPago != "" && string(v.EstadoPago) != f.EstadoPago,
			f.Fecha != "" && v.CreatedAt.Format("2006-01-02") != f.Fecha:
			continue
		}
		out = append(out, r.withItems(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumeroTicket > out[j].NumeroTicket })
	return out, int64(len(out)), nil
}

func (r ventas) ListFinalizadasEntre(_ context.Context, desde, hasta time.Time) ([]model.Venta, error) {
	var out []model.Venta
	for _, v := range r.s.d.ventas {
		if v.Estado == model.VentaFinalizada && !v.CreatedAt.Before(desde) && v.CreatedAt.Before(hasta) {
			out = append(out, r.withItems(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NumeroTicket < out[j].NumeroTicket })
	return out, nil
}

// ── Clientes ──────────────────────────────────────────────────────────────────

type clientes struct{ s *Store }

func (r clientes) CreateTx(_ *gorm.DB, c *model.Cliente) error {
	if c.Documento != nil {
		for _, o := range r.s.d.clientes {
			if o.Documento != nil && strings.EqualFold(*o.Documento, *c.Documento) {
				return uniqueViolation("clientes_documento_key")
			}
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	r.s.d.clientes[c.ID] = *c
	return nil
}

func (r clientes) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Cliente, error) {
	c, ok := r.s.d.clientes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r clientes) UpdateTx(_ *gorm.DB, c *model.Cliente) error {
	if _, ok := r.s.d.clientes[c.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.s.d.clientes[c.ID] = *c
	return nil
}

func (r clientes) FindByID(_ context.Context, id uuid.UUID) (*model.Cliente, error) {
	return r.FindByIDForUpdateTx(nil, id)
}

func (r clientes) ListAll(context.Context) ([]model.Cliente, error) {
	out := make([]model.Cliente, 0, len(r.s.d.clientes))
	for _, c := range r.s.d.clientes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

// ── Deudas ────────────────────────────────────────────────────────────────────

type deudas struct{ s *Store }

func (r deudas) CreateTx(_ *gorm.DB, d *model.Deuda) error {
	for _, o := range r.s.d.deudas {
		if o.VentaID == d.VentaID {
			return uniqueViolation("deudas_venta_id_key")
		}
	}
	h := *d
	h.Pagos = nil
	r.s.d.deudas[d.ID] = h
	return nil
}

func (r deudas) FindByIDTx(_ *gorm.DB, id uuid.UUID) (*model.Deuda, error) {
	d, ok := r.s.d.deudas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (r deudas) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Deuda, error) {
	d, ok := r.s.d.deudas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &d, nil
}

func (r deudas) FindByVentaIDForUpdateTx(_ *gorm.DB, ventaID uuid.UUID) (*model.Deuda, error) {
	for _, d := range r.s.d.deudas {
		if d.VentaID == ventaID {
			return &d, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r deudas) UpdateTx(_ *gorm.DB, d *model.Deuda) error {
	if _, ok := r.s.d.deudas[d.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	h := *d
	h.Pagos = nil
	r.s.d.deudas[d.ID] = h
	return nil
}

func (r deudas) CreatePagoTx(_ *gorm.DB, p *model.PagoDeuda) error {
	r.s.d.pagosDeuda = append(r.s.d.pagosDeuda, *p)
	return nil
}

func (r deudas) ListPagosTx(_ *gorm.DB, deudaID uuid.UUID) ([]model.PagoDeuda, error) {
	return r.withPagos(model.Deuda{ID: deudaID}).Pagos, nil
}

func (r deudas) withPagos(d model.Deuda) model.Deuda {
	d.Pagos = nil
	for _, p := range r.s.d.pagosDeuda {
		if p.DeudaID == d.ID {
			d.Pagos = append(d.Pagos, p)
		}
	}
	return d
}

func (r deudas) list(keep func(model.Deuda) bool) []model.Deuda {
	var out []model.Deuda
	for _, d := range r.s.d.deudas {
		if keep(d) {
			out = append(out, r.withPagos(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FechaVencimiento.Before(out[j].FechaVencimiento) })
	return out
}

func (r deudas) ListByCliente(_ context.Context, clienteID uuid.UUID) ([]model.Deuda, error) {
	return r.list(func(d model.Deuda) bool { return d.ClienteID == clienteID }), nil
}

func (r deudas) ListAbiertas(context.Context) ([]model.Deuda, error) {
	return r.list(func(d model.Deuda) bool { return d.Abierta() }), nil
}

func (r deudas) MarcarVencidas(_ context.Context, ahora time.Time) (int64, error) {
	var n int64
	for id, d := range r.s.d.deudas {
		if d.Estado == model.DeudaPendiente && d.FechaVencimiento.Before(ahora) {
			d.Estado = model.DeudaVencida
			d.UpdatedAt = ahora
			r.s.d.deudas[id] = d
			n++
		}
	}
	return n, nil
}

// ── Caja ──────────────────────────────────────────────────────────────────────

type caja struct{ s *Store }

func (r caja) CreateSesion(_ context.Context, ses *model.SesionCaja) error {
	if ses.Estado == model.SesionAbierta {
		for _, o := range r.s.d.sesiones {
			if o.UsuarioID == ses.UsuarioID && o.Abierta() {
				return uniqueViolation("uq_sesiones_caja_usuario_abierta")
			}
		}
	}
	if ses.ID == uuid.Nil {
		ses.ID = uuid.New()
	}
	r.s.d.sesiones[ses.ID] = *ses
	return nil
}

func (r caja) FindSesionAbierta(_ context.Context, usuarioID uuid.UUID) (*model.SesionCaja, error) {
	return r.FindSesionAbiertaTx(nil, usuarioID, repository.LockNone)
}

func (r caja) FindSesionAbiertaTx(_ *gorm.DB, usuarioID uuid.UUID, _ repository.Lock) (*model.SesionCaja, error) {
	for _, ses := range r.s.d.sesiones {
		if ses.UsuarioID == usuarioID && ses.Abierta() {
			return &ses, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r caja) FindSesionByID(_ context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	ses, ok := r.s.d.sesiones[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &ses, nil
}

func (r caja) UpdateSesionTx(_ *gorm.DB, ses *model.SesionCaja) error {
	r.s.d.sesiones[ses.ID] = *ses
	return nil
}

func (r caja) CreateMovimientoTx(_ *gorm.DB, m *model.MovimientoCaja) error {
	if ses, ok := r.s.d.sesiones[m.SesionCajaID]; !ok || !ses.Abierta() {
		return gorm.ErrRecordNotFound
	}
	stamp(&m.CreatedAt, r.s.now())
	r.s.d.movCaja = append(r.s.d.movCaja, *m)
	return nil
}

func (r caja) ListMovimientos(_ context.Context, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	return r.ListMovimientosTx(nil, sesionID)
}

func (r caja) ListMovimientosTx(_ *gorm.DB, sesionID uuid.UUID) ([]model.MovimientoCaja, error) {
	var out []model.MovimientoCaja
	for _, m := range r.s.d.movCaja {
		if m.SesionCajaID == sesionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r caja) ListMovimientosHasta(_ context.Context, hasta time.Time) ([]model.MovimientoCaja, error) {
	var out []model.MovimientoCaja
	for _, m := range r.s.d.movCaja {
		if m.CreatedAt.Before(hasta) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r caja) ListSesiones(_ context.Context, page, limit int) ([]model.SesionCaja, int64, error) {
	all := r.sesiones(func(model.SesionCaja) bool { return true })
	sort.Slice(all, func(i, j int) bool { return all[i].OpenedAt.After(all[j].OpenedAt) })
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	from := (page - 1) * limit
	if from > len(all) {
		from = len(all)
	}
	to := from + limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], int64(len(all)), nil
}

func (r caja) ListSesionesCerradas(context.Context) ([]model.SesionCaja, error) {
	out := r.sesiones(func(s model.SesionCaja) bool { return s.Estado == model.SesionCerrada })
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out, nil
}

func (r caja) sesiones(keep func(model.SesionCaja) bool) []model.SesionCaja {
	var out []model.SesionCaja
	for _, ses := range r.s.d.sesiones {
		if keep(ses) {
			out = append(out, ses)
		}
	}
	return out
}

// ── Devoluciones ──────────────────────────────────────────────────────────────

type devoluciones struct{ s *Store }

func (r devoluciones) CreateTx(_ *gorm.DB, d *model.Devolucion) error {
	c := *d
	c.Items = append([]model.DevolucionItem(nil), d.Items...)
	r.s.d.devoluciones = append(r.s.d.devoluciones, c)
	return nil
}

func (r devoluciones) ListByVenta(_ context.Context, ventaID uuid.UUID) ([]model.Devolucion, error) {
	var out []model.Devolucion
	for _, d := range r.s.d.devoluciones {
		if d.VentaID == ventaID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r devoluciones) ListEntre(_ context.Context, desde, hasta time.Time) ([]model.Devolucion, error) {
	var out []model.Devolucion
	for _, d := range r.s.d.devoluciones {
		if !d.CreatedAt.Before(desde) && d.CreatedAt.Before(hasta) {
			out = append(out, d)
		}
	}
	return out, nil
}

// ── Gastos ────────────────────────────────────────────────────────────────────

type gastos struct{ s *Store }

func (r gastos) Create(_ context.Context, g *model.Gasto) error {
	h := *g
	h.Pagos = nil
	r.s.d.gastos[g.ID] = h
	return nil
}

func (r gastos) FindByID(_ context.Context, id uuid.UUID) (*model.Gasto, error) {
	g, ok := r.s.d.gastos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	for _, p := range r.s.d.pagosGasto {
		if p.GastoID == id {
			g.Pagos = append(g.Pagos, p)
		}
	}
	return &g, nil
}

func (r gastos) FindByIDForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Gasto, error) {
	g, ok := r.s.d.gastos[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &g, nil
}

func (r gastos) UpdateTx(_ *gorm.DB, g *model.Gasto) error {
	return r.Create(context.Background(), g)
}

func (r gastos) CreatePagoTx(_ *gorm.DB, p *model.PagoGasto) error {
	r.s.d.pagosGasto = append(r.s.d.pagosGasto, *p)
	return nil
}

// ── Eventos (outbox) ──────────────────────────────────────────────────────────

type eventos struct{ s *Store }

func (r eventos) CreateTx(_ *gorm.DB, e *model.EventoPendiente) error {
	if _, ok := r.s.d.eventos[e.Clave]; ok {
		return nil
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.s.d.eventos[e.Clave] = *e
	return nil
}

func (r eventos) FindByClaveTx(_ *gorm.DB, clave string, _ repository.Lock) (*model.EventoPendiente, error) {
	e, ok := r.s.d.eventos[clave]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &e, nil
}

func (r eventos) update(id uuid.UUID, fn func(*model.EventoPendiente)) error {
	for k, e := range r.s.d.eventos {
		if e.ID == id {
			fn(&e)
			r.s.d.eventos[k] = e
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r eventos) MarcarProcesadoTx(_ *gorm.DB, id uuid.UUID, ahora time.Time) error {
	return r.update(id, func(e *model.EventoPendiente) {
		e.Estado = model.EventoProcesado
		e.ProcessedAt = &ahora
		e.LastError = nil
	})
}

// Claim runs outside Transaction in the relay, so it takes the store lock.
func (r eventos) Claim(_ context.Context, ahora time.Time, limit int, lease time.Duration) ([]model.EventoPendiente, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var due []model.EventoPendiente
	for _, e := range r.s.d.eventos {
		if e.Estado == model.EventoPendienteEstado && !e.NextRetryAt.After(ahora) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].NextRetryAt.Equal(due[j].NextRetryAt) {
			return due[i].Clave < due[j].Clave
		}
		return due[i].NextRetryAt.Before(due[j].NextRetryAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	for _, e := range due {
		e.NextRetryAt = ahora.Add(lease)
		r.s.d.eventos[e.Clave] = e
	}
	return due, nil
}

func (r eventos) MarcarProcesado(_ context.Context, id uuid.UUID, ahora time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.MarcarProcesadoTx(nil, id, ahora)
}

func (r eventos) MarcarFallo(_ context.Context, id uuid.UUID, intentos int, next time.Time, msg string, definitivo bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.update(id, func(e *model.EventoPendiente) {
		e.Estado = model.EventoPendienteEstado
		if definitivo {
			e.Estado = model.EventoFallido
		}
		e.Intentos = intentos
		e.NextRetryAt = next
		e.LastError = &msg
	})
}

func (r eventos) CountPendientes(context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.d.eventos {
		if e.Estado == model.EventoPendienteEstado {
			n++
		}
	}
	return n, nil
}

// ── Puntos ────────────────────────────────────────────────────────────────────

type puntos struct{ s *Store }

func (r puntos) CreateTx(_ *gorm.DB, m *model.MovimientoPuntos) error {
	if m.Clave != nil {
		if ok, _ := r.ExisteClaveTx(nil, *m.Clave); ok {
			return uniqueViolation("movimientos_puntos_clave_key")
		}
	}
	r.s.d.puntos = append(r.s.d.puntos, *m)
	return nil
}

func (r puntos) ExisteClaveTx(_ *gorm.DB, clave string) (bool, error) {
	for _, m := range r.s.d.puntos {
		if m.Clave != nil && *m.Clave == clave {
			return true, nil
		}
	}
	return false, nil
}
