package planificadores

// carga es el avance de un proceso sobre su programa: ráfagas alternadas de CPU y de espera dormido,
// empezando y terminando en CPU.
type carga struct {
	rafagas   []int
	fase      int
	consumido int
}

type accion int

const (
	accionSeguir accion = iota
	accionDormir
	accionSalir
)

// normalizarRafagas deja una lista impar de valores positivos: [cpu, dormir, cpu, ...].
func normalizarRafagas(rafagas []int) []int {
	normalizadas := make([]int, 0, len(rafagas))
	for _, r := range rafagas {
		if r < 1 {
			r = 1
		}
		normalizadas = append(normalizadas, r)
	}
	if len(normalizadas) == 0 {
		return []int{1}
	}
	if len(normalizadas)%2 == 0 {
		normalizadas = normalizadas[:len(normalizadas)-1]
	}
	return normalizadas
}

func (p *Service) cargarPrograma(pid int, rafagas []int) {
	p.mutexCargas.Lock()
	defer p.mutexCargas.Unlock()
	p.cargas[pid] = &carga{rafagas: rafagas}
}

func (p *Service) olvidarPrograma(pid int) {
	p.mutexCargas.Lock()
	defer p.mutexCargas.Unlock()
	delete(p.cargas, pid)
	delete(p.dormidos, pid)
}

// avanzarPrograma cuenta un tick de CPU sobre el programa del pid y dice qué hacer después.
// Un proceso sin programa corre hasta que alguien lo saque.
func (p *Service) avanzarPrograma(pid int) (accion, int) {
	p.mutexCargas.Lock()
	defer p.mutexCargas.Unlock()

	c, ok := p.cargas[pid]
	if !ok {
		return accionSeguir, 0
	}

	c.consumido++
	if c.consumido < c.rafagas[c.fase] {
		return accionSeguir, 0
	}

	c.consumido = 0
	c.fase++
	if c.fase >= len(c.rafagas) {
		delete(p.cargas, pid)
		return accionSalir, 0
	}

	ticksDormido := c.rafagas[c.fase]
	c.fase++
	return accionDormir, ticksDormido
}
