package planificadores

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sisoputnfrba/tp-golang/kernel/internal"
	"github.com/sisoputnfrba/tp-golang/utils/log"
)

func nuevoService(cpus int, programas map[string][]int) *Service {
	return NewPlanificador(log.BuildLogger("error"), Config{
		CantidadCpus:   cpus,
		CapacidadTabla: 8,
		Programas:      programas,
	}, nil)
}

func registro(t *testing.T, p *Service, pid int) internal.Registro {
	t.Helper()
	r, err := p.Tabla.Buscar(pid)
	require.NoError(t, err)
	return r
}

func TestService_EscenarioCompleto(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(2, nil)

	pid, err := p.Fork(PIDInit, "")
	require.NoError(t, err)

	// El reloj lo avanza la CPU 0; el proceso corre en la CPU 1.
	require.NoError(t, p.InterrupcionReloj(0))
	require.NoError(t, p.InterrupcionReloj(0))

	despachado, err := p.Despachar(1)
	require.NoError(t, err)
	ass.Equal(pid, despachado)
	ass.Equal(uint64(2), registro(t, p, pid).PrimerDespachoTick)

	for i := 0; i < 5; i++ {
		require.NoError(t, p.InterrupcionReloj(0))
		require.NoError(t, p.InterrupcionReloj(1))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, p.InterrupcionReloj(0))
	}
	ass.Equal(uint64(10), p.Reloj.Actual())

	require.NoError(t, p.Salir(1, 0))

	var pstat internal.Pstat
	ass.Equal(internal.CodigoOK, p.ProcStat(PIDInit, pid, &pstat))
	ass.Equal(internal.Pstat{CTime: 0, ETime: 10, TTime: 5, TATime: 10}, pstat)

	r := registro(t, p, pid)
	ass.Equal(internal.EstadoZombie, r.Estado)
	ass.True(r.CreacionTick <= r.PrimerDespachoTick)
	ass.True(r.PrimerDespachoTick <= r.TerminacionTick)
}

func TestService_FCFSSecuencial(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, map[string][]int{"p1": {10}, "p2": {4}})

	p1, err := p.Fork(PIDInit, "p1")
	require.NoError(t, err)
	p2, err := p.Fork(PIDInit, "p2")
	require.NoError(t, err)
	ass.Equal([]int{p1, p2}, p.ReadyQueue())

	_, err = p.Despachar(0)
	require.NoError(t, err)
	for i := 0; i < 14; i++ {
		p.Ciclo()
	}

	r1 := registro(t, p, p1)
	r2 := registro(t, p, p2)

	tat1, ok := r1.Turnaround()
	require.True(t, ok)
	tat2, ok := r2.Turnaround()
	require.True(t, ok)

	ass.Equal(uint64(10), tat1)
	ass.Equal(uint64(14), tat2)
	ass.Equal(uint64(0), r1.Espera())
	ass.Equal(uint64(10), r2.Espera())
	ass.Equal(uint64(10), r2.PrimerDespachoTick)
	ass.Equal(uint64(12), (tat1+tat2)/2)
}

func TestService_ProcStat(t *testing.T) {
	p := nuevoService(1, nil)

	padre, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	hijo, err := p.Fork(padre, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		llamador int
		pid      int
		want     int
	}{
		{name: "el padre consulta al hijo", llamador: padre, pid: hijo, want: internal.CodigoOK},
		{name: "el proceso se consulta a sí mismo", llamador: hijo, pid: hijo, want: internal.CodigoOK},
		{name: "init consulta a su hijo", llamador: PIDInit, pid: padre, want: internal.CodigoOK},
		{name: "un extraño consulta", llamador: PIDInit, pid: hijo, want: internal.CodigoPermisoDenegado},
		{name: "el hijo consulta al padre", llamador: hijo, pid: padre, want: internal.CodigoPermisoDenegado},
		{name: "pid nunca asignado", llamador: PIDInit, pid: 7, want: internal.CodigoProcesoNoEncontrado},
		{name: "pid inválido", llamador: PIDInit, pid: -1, want: internal.CodigoProcesoNoEncontrado},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			centinela := internal.Pstat{CTime: 99, ETime: 99, TTime: 99, TATime: 99}
			out := centinela
			got := p.ProcStat(tt.llamador, tt.pid, &out)
			assert.Equal(t, tt.want, got)
			if tt.want != internal.CodigoOK {
				assert.Equal(t, centinela, out, "out no se toca si la syscall falla")
				return
			}
			assert.Equal(t, internal.Pstat{}, out, "proceso vivo sin ticks")
		})
	}

	assert.Equal(t, internal.CodigoError, p.ProcStat(PIDInit, padre, nil))
}

func TestService_ProcStatDespuesDeReclamar(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, nil)

	pid, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	_, err = p.Despachar(0)
	require.NoError(t, err)
	require.NoError(t, p.InterrupcionReloj(0))
	require.NoError(t, p.Salir(0, 0))

	reclamado, pstat, err := p.Esperar(context.Background(), PIDInit)
	require.NoError(t, err)
	ass.Equal(pid, reclamado)
	ass.Equal(internal.Pstat{CTime: 0, ETime: 1, TTime: 1, TATime: 1}, pstat)

	var out internal.Pstat
	ass.Equal(internal.CodigoProcesoNoEncontrado, p.ProcStat(PIDInit, pid, &out))

	// El slot se reutiliza y el PID viejo sigue sin resolver.
	nuevo, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	ass.NotEqual(pid, nuevo)
	ass.Equal(internal.CodigoProcesoNoEncontrado, p.ProcStat(PIDInit, pid, &out))
	ass.Equal(internal.CodigoOK, p.ProcStat(PIDInit, nuevo, &out))
}

func TestService_TablaLlena(t *testing.T) {
	p := NewPlanificador(log.BuildLogger("error"), Config{CantidadCpus: 1, CapacidadTabla: 2}, nil)

	_, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	_, err = p.Fork(PIDInit, "")
	require.NoError(t, err)

	cola := p.ReadyQueue()
	_, err = p.Fork(PIDInit, "")
	assert.ErrorIs(t, err, internal.ErrTablaLlena)
	assert.Equal(t, internal.CodigoTablaLlena, internal.CodigoDeError(err))
	assert.Equal(t, cola, p.ReadyQueue())
	assert.Len(t, p.Tabla.Listar(), 2)
}

func TestService_TicksSinAtribucionCruzada(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(2, nil)

	a, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	b, err := p.Fork(PIDInit, "")
	require.NoError(t, err)

	_, err = p.Despachar(0)
	require.NoError(t, err)
	_, err = p.Despachar(1)
	require.NoError(t, err)

	// La CPU 1 recibe más interrupciones que ticks tiene el reloj; las sobrantes no se cobran.
	ticks := map[int]int{0: 700, 1: 1000}
	var wg sync.WaitGroup
	for cpuID, n := range ticks {
		cpuID, n := cpuID, n
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < n; i++ {
				assert.NoError(t, p.InterrupcionReloj(cpuID))
			}
		}()
	}
	wg.Wait()

	ass.Equal(uint64(700), p.Reloj.Actual())
	ass.Equal(uint64(700), registro(t, p, a).TicksEjecucion)
	ass.LessOrEqual(registro(t, p, b).TicksEjecucion, uint64(700))

	require.NoError(t, p.Salir(0, 0))
	require.NoError(t, p.Salir(1, 0))
	for _, pid := range []int{a, b} {
		pstat := registro(t, p, pid).Pstat()
		ass.LessOrEqual(pstat.TTime, pstat.TATime)
	}
}

func TestService_TickSeCobraUnaSolaVez(t *testing.T) {
	tests := []struct {
		name  string
		orden []int
		want  internal.Pstat
	}{
		{
			name:  "interrupciones alternadas en la CPU 1",
			orden: []int{1, 0, 1, 0, 1},
			want:  internal.Pstat{CTime: 0, ETime: 2, TTime: 2, TATime: 2},
		},
		{
			name:  "varias interrupciones en el mismo tick",
			orden: []int{0, 1, 1, 1, 0, 1, 1},
			want:  internal.Pstat{CTime: 0, ETime: 2, TTime: 2, TATime: 2},
		},
		{
			name:  "sin avance del reloj no hay cobro",
			orden: []int{1, 1, 1},
			want:  internal.Pstat{CTime: 0, ETime: 0, TTime: 0, TATime: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := nuevoService(2, nil)

			pid, err := p.Fork(PIDInit, "")
			require.NoError(t, err)
			_, err = p.Despachar(1)
			require.NoError(t, err)

			for _, cpuID := range tt.orden {
				require.NoError(t, p.InterrupcionReloj(cpuID))
			}
			require.NoError(t, p.Salir(1, 0))

			r := registro(t, p, pid)
			assert.Equal(t, tt.want, r.Pstat())
			assert.Equal(t, uint64(tt.want.TATime-tt.want.TTime), r.Espera())
		})
	}
}

func TestService_ForkConPadreInvalido(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, nil)

	_, err := p.Fork(999, "")
	ass.ErrorIs(err, internal.ErrProcesoNoEncontrado)
	ass.Empty(p.Tabla.Listar(), "no se asigna ningún slot")

	padre, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	_, err = p.Despachar(0)
	require.NoError(t, err)
	require.NoError(t, p.Salir(0, 0))

	_, err = p.Fork(padre, "")
	ass.ErrorIs(err, internal.ErrProcesoNoEncontrado, "un padre ZOMBIE no puede tener hijos nuevos")

	reclamado, _, err := p.Esperar(context.Background(), PIDInit)
	require.NoError(t, err)
	ass.Equal(padre, reclamado)

	_, err = p.Fork(padre, "")
	ass.ErrorIs(err, internal.ErrProcesoNoEncontrado, "pid viejo de un slot ya reclamado")

	// Con el padre validado, la tabla no pierde slots: se llena y se vacía sin fugas.
	for i := 0; i < 3*p.Tabla.Capacidad(); i++ {
		_, _ = p.Fork(999, "")
	}
	ass.Empty(p.Tabla.Listar())
}

func TestService_EjecutarVariasCPUs(t *testing.T) {
	ass := assert.New(t)
	programas := map[string][]int{
		"corto": {3},
		"largo": {5, 2, 3},
	}
	p := nuevoService(3, programas)

	ctx, cancel := context.WithCancel(context.Background())
	terminado := make(chan error, 1)
	go func() { terminado <- p.Ejecutar(ctx, time.Millisecond) }()

	creados := map[int]string{}
	for _, programa := range []string{"corto", "largo", "corto", "largo", "corto"} {
		pid, err := p.Fork(PIDInit, programa)
		require.NoError(t, err)
		creados[pid] = programa
	}

	esperaCtx, cancelEspera := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelEspera()
	for range creados {
		pid, pstat, err := p.Esperar(esperaCtx, PIDInit)
		require.NoError(t, err)

		rafagasCPU := 3
		if creados[pid] == "largo" {
			rafagasCPU = 8
		}
		ass.Equal(rafagasCPU, pstat.TTime, "pid %d", pid)
		ass.LessOrEqual(pstat.TTime, pstat.TATime, "pid %d", pid)
		ass.Equal(pstat.ETime-pstat.CTime, pstat.TATime, "pid %d", pid)
	}

	cancel()
	select {
	case err := <-terminado:
		ass.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("Ejecutar no terminó al cancelar el contexto")
	}
}

func TestService_TicksMonotonosYSinLecturasRotas(t *testing.T) {
	p := nuevoService(1, nil)

	pid, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	_, err = p.Despachar(0)
	require.NoError(t, err)

	listo := make(chan struct{})
	go func() {
		defer close(listo)
		for i := 0; i < 500; i++ {
			_ = p.InterrupcionReloj(0)
		}
		_ = p.Salir(0, 0)
		for i := 0; i < 50; i++ {
			_ = p.InterrupcionReloj(0)
		}
	}()

	var anterior int
	for terminado := false; !terminado; {
		select {
		case <-listo:
			terminado = true
		default:
		}

		var out internal.Pstat
		require.Equal(t, internal.CodigoOK, p.ProcStat(PIDInit, pid, &out))
		require.GreaterOrEqual(t, out.TTime, anterior)
		anterior = out.TTime
		if out.ETime != 0 {
			// Una foto con fin ya incluye todos los ticks del proceso.
			require.Equal(t, 500, out.TTime)
			require.Equal(t, out.ETime-out.CTime, out.TATime)
		}
	}

	var final internal.Pstat
	require.Equal(t, internal.CodigoOK, p.ProcStat(PIDInit, pid, &final))
	assert.Equal(t, internal.Pstat{CTime: 0, ETime: 500, TTime: 500, TATime: 500}, final)
}

func TestService_ProgramaConEsperaDormido(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, map[string][]int{"io": {2, 3, 1}})

	pid, err := p.Fork(PIDInit, "io")
	require.NoError(t, err)
	_, err = p.Despachar(0)
	require.NoError(t, err)

	p.Ciclo()
	p.Ciclo()
	ass.Equal(internal.EstadoSleeping, registro(t, p, pid).Estado)

	p.Ciclo()
	p.Ciclo()
	ass.Equal(internal.EstadoSleeping, registro(t, p, pid).Estado)

	p.Ciclo()
	ass.Equal(internal.EstadoRunning, registro(t, p, pid).Estado)

	p.Ciclo()
	r := registro(t, p, pid)
	ass.Equal(internal.EstadoZombie, r.Estado)
	ass.Equal(internal.Pstat{CTime: 0, ETime: 6, TTime: 3, TATime: 6}, r.Pstat())
	ass.Equal(0, r.CodigoSalida)
}

func TestService_ExecFallido(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, nil)

	pid, err := p.Fork(PIDInit, "no-existe")
	ass.ErrorIs(err, internal.ErrProgramaDesconocido)
	require.NotZero(t, pid)

	r := registro(t, p, pid)
	ass.Equal(internal.EstadoZombie, r.Estado)
	ass.Equal(-1, r.CodigoSalida)
	ass.Empty(p.ReadyQueue())

	reclamado, _, err := p.Esperar(context.Background(), PIDInit)
	require.NoError(t, err)
	ass.Equal(pid, reclamado)
}

func TestService_Matar(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, nil)

	corriendo, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	listo, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	dormido, err := p.Fork(PIDInit, "")
	require.NoError(t, err)

	// Los dos primeros ceden la CPU para que dormido llegue a correr y se bloquee sin plazo.
	for _, esperado := range []int{corriendo, listo, dormido} {
		despachado, err := p.Despachar(0)
		require.NoError(t, err)
		require.Equal(t, esperado, despachado)
		if despachado == dormido {
			require.NoError(t, p.Dormir(0, 0))
			continue
		}
		require.NoError(t, p.Ceder(0))
	}
	ass.Equal(internal.EstadoSleeping, registro(t, p, dormido).Estado)

	_, err = p.Despachar(0)
	require.NoError(t, err)
	ass.Equal(internal.EstadoRunning, registro(t, p, corriendo).Estado)

	require.NoError(t, p.Matar(listo))
	ass.Equal(internal.EstadoZombie, registro(t, p, listo).Estado)

	require.NoError(t, p.Matar(dormido))
	ass.Equal(internal.EstadoZombie, registro(t, p, dormido).Estado)

	require.NoError(t, p.Matar(corriendo))
	ass.Equal(internal.EstadoRunning, registro(t, p, corriendo).Estado, "termina en el próximo tick")
	require.NoError(t, p.InterrupcionReloj(0))
	r := registro(t, p, corriendo)
	ass.Equal(internal.EstadoZombie, r.Estado)
	ass.Equal(-1, r.CodigoSalida)
	ass.Equal(uint64(1), r.TicksEjecucion)

	ass.ErrorIs(p.Matar(corriendo), internal.ErrEstadoInvalido)
	ass.Empty(p.ReadyQueue())
}

func TestService_Esperar(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, nil)

	_, _, err := p.Esperar(context.Background(), PIDInit)
	ass.ErrorIs(err, internal.ErrSinHijos)

	_, _, err = p.Esperar(context.Background(), 42)
	ass.ErrorIs(err, internal.ErrProcesoNoEncontrado)

	pid, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	_, err = p.Despachar(0)
	require.NoError(t, err)

	type resultado struct {
		pid   int
		pstat internal.Pstat
		err   error
	}
	resultados := make(chan resultado, 1)
	go func() {
		reclamado, pstat, err := p.Esperar(context.Background(), PIDInit)
		resultados <- resultado{reclamado, pstat, err}
	}()

	select {
	case <-resultados:
		t.Fatal("Esperar volvió antes de que el hijo termine")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, p.InterrupcionReloj(0))
	require.NoError(t, p.Salir(0, 3))

	select {
	case res := <-resultados:
		require.NoError(t, res.err)
		ass.Equal(pid, res.pid)
		ass.Equal(internal.Pstat{CTime: 0, ETime: 1, TTime: 1, TATime: 1}, res.pstat)
	case <-time.After(2 * time.Second):
		t.Fatal("Esperar no volvió")
	}
}

func TestService_EsperarCancelado(t *testing.T) {
	p := nuevoService(1, nil)
	_, err := p.Fork(PIDInit, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err = p.Esperar(ctx, PIDInit)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestService_Huerfanos(t *testing.T) {
	ass := assert.New(t)
	p := nuevoService(1, nil)

	padre, err := p.Fork(PIDInit, "")
	require.NoError(t, err)
	hijo, err := p.Fork(padre, "")
	require.NoError(t, err)

	_, err = p.Despachar(0)
	require.NoError(t, err)
	require.NoError(t, p.Salir(0, 0))

	ass.Equal(PIDInit, registro(t, p, hijo).Padre)

	var out internal.Pstat
	ass.Equal(internal.CodigoOK, p.ProcStat(PIDInit, hijo, &out))

	primero, _, err := p.Esperar(context.Background(), PIDInit)
	require.NoError(t, err)
	ass.Equal(padre, primero)
}

func TestService_Ejecutar(t *testing.T) {
	p := nuevoService(2, map[string][]int{"corto": {2}})

	ctx, cancel := context.WithCancel(context.Background())
	terminado := make(chan error, 1)
	go func() { terminado <- p.Ejecutar(ctx, time.Millisecond) }()

	pid, err := p.Fork(PIDInit, "corto")
	require.NoError(t, err)

	esperaCtx, cancelEspera := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelEspera()
	reclamado, pstat, err := p.Esperar(esperaCtx, PIDInit)
	require.NoError(t, err)
	assert.Equal(t, pid, reclamado)
	assert.Equal(t, 2, pstat.TTime)
	assert.GreaterOrEqual(t, pstat.TATime, pstat.TTime)

	cancel()
	select {
	case err = <-terminado:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Ejecutar no terminó al cancelar el contexto")
	}
}

type contabilidadFalsa struct {
	mu        sync.Mutex
	registros []internal.Registro
}

func (c *contabilidadFalsa) Registrar(_ context.Context, r internal.Registro) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registros = append(c.registros, r)
	return nil
}

func TestService_ReclamoRegistraContabilidad(t *testing.T) {
	ass := assert.New(t)
	cont := &contabilidadFalsa{}
	p := NewPlanificador(log.BuildLogger("error"), Config{
		CantidadCpus:   1,
		CapacidadTabla: 4,
		Programas:      map[string][]int{"dos": {2}},
	}, cont)

	pid, err := p.Fork(PIDInit, "dos")
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		p.Ciclo()
	}

	ocupada, err := p.ProcesoEnCPU(CPUReloj)
	require.NoError(t, err)
	ass.Equal(0, ocupada)

	cpus := p.CPUs()
	require.Len(t, cpus, 1)
	ass.Equal(uint64(4), cpus[0].Ticks)
	ass.Equal(uint64(2), cpus[0].TicksOcupada)

	reclamado, pstat, err := p.Esperar(context.Background(), PIDInit)
	require.NoError(t, err)
	ass.Equal(pid, reclamado)
	ass.Equal(internal.Pstat{CTime: 0, ETime: 3, TTime: 2, TATime: 3}, pstat)

	require.Len(t, cont.registros, 1)
	ass.Equal(pid, cont.registros[0].PID)
	ass.Equal("dos", cont.registros[0].Nombre)
	ass.Equal(uint64(1), cont.registros[0].Espera())

	_, err = p.ProcesoEnCPU(3)
	ass.ErrorIs(err, internal.ErrCPUInvalida)
}
