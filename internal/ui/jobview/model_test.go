package jobview

import (
	"strings"
	"testing"

	"github.com/nhle/attachdl/internal/job"
	"github.com/nhle/attachdl/internal/model"
)

func TestViewIdle(t *testing.T) {
	m := New(job.New(), 80, 24)
	view := m.View()

	if !strings.Contains(view, "Sin actividad reciente") {
		t.Error("idle view should show the placeholder")
	}
	if !strings.Contains(view, "Iniciar descarga") {
		t.Error("idle view should show the start control")
	}
	if strings.Contains(view, "Detener") {
		t.Error("idle view should hide the stop control")
	}
}

func TestViewRunning(t *testing.T) {
	ctrl := job.New()
	m := New(ctrl, 80, 24)
	if _, _, err := ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctrl.Apply(model.StartEvent{Total: 4})
	ctrl.Apply(model.ProgressEvent{Current: 1, Total: 4, Files: []string{"=?ISO-8859-1?Q?factura_espa=F1a.pdf?="}})
	m.Refresh()

	view := m.View()
	for _, want := range []string{"Detener", " 25%", "Procesando correo 1 de 4...", "factura españa.pdf", "Guardado correctamente"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}
	if strings.Contains(view, "Iniciar descarga") {
		t.Error("running view should hide the start control")
	}
}
