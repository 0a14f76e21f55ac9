package internal

import "sync/atomic"

// Reloj es el contador de ticks del kernel. Lo avanza solo la interrupción de timer de la CPU del reloj.
type Reloj struct {
	ticks atomic.Uint64
}

func NewReloj() *Reloj {
	return &Reloj{}
}

// Actual devuelve el último tick confirmado.
func (r *Reloj) Actual() uint64 {
	return r.ticks.Load()
}

// Avanzar suma exactamente un tick y devuelve el nuevo valor.
func (r *Reloj) Avanzar() uint64 {
	return r.ticks.Add(1)
}
