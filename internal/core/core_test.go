package core

import (
	"context"
	"errors"
	"testing"
)

// lifecycleModule records Start and Stop calls into a shared log.
type lifecycleModule struct {
	id       ModuleID
	log      *[]string
	startErr error
}

func (m *lifecycleModule) ModuleInfo() ModuleInfo {
	return ModuleInfo{ID: m.id, New: func() Module { return m }}
}

func (m *lifecycleModule) Start() error {
	*m.log = append(*m.log, "start "+string(m.id))
	return m.startErr
}

func (m *lifecycleModule) Stop(_ context.Context) error {
	*m.log = append(*m.log, "stop "+string(m.id))
	return nil
}

func TestApp_StartStopOrder(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.a", log: &log})
	RegisterModule(&lifecycleModule{id: "test.b", log: &log})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.a", "test.b"}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	app.AppendModule(&lifecycleModule{id: "test.appended", log: &log})

	if _, ok := app.Module("test.b"); !ok {
		t.Error("Module(test.b) not found")
	}
	if _, ok := app.Module("test.zzz"); ok {
		t.Error("Module found an unknown id")
	}

	if err := app.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	app.Stop()

	want := []string{
		"start test.a", "start test.b", "start test.appended",
		"stop test.appended", "stop test.b", "stop test.a",
	}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestApp_StartFailureStopsStarted(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.ok", log: &log})
	RegisterModule(&lifecycleModule{id: "test.bad", log: &log, startErr: errors.New("boom")})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.ok", "test.bad"}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	if err := app.Start(); err == nil {
		t.Fatal("expected Start error")
	}

	want := []string{"start test.ok", "start test.bad", "stop test.ok"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("log = %v, want %v", log, want)
		}
	}
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.run", log: &log})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.run"}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(log) != 2 || log[0] != "start test.run" || log[1] != "stop test.run" {
		t.Errorf("log = %v", log)
	}
}

func TestApp_CloseReleasesUnstarted(t *testing.T) {
	t.Cleanup(resetRegistry)

	var log []string
	RegisterModule(&lifecycleModule{id: "test.idle", log: &log})

	app := NewApp(NewAppContext(nil, t.TempDir()))
	if err := app.LoadModules([]string{"test.idle"}); err != nil {
		t.Fatalf("LoadModules: %v", err)
	}
	app.Stop()
	if len(log) != 0 {
		t.Fatalf("Stop touched an unstarted module: %v", log)
	}
	app.Close()
	if len(log) != 1 || log[0] != "stop test.idle" {
		t.Errorf("log = %v", log)
	}
	if _, ok := app.Module("test.idle"); ok {
		t.Error("module still listed after Close")
	}
}
