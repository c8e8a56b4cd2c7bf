// Package app runs the node through its initialization stages and then
// a single run hook, calling the fallback once on shutdown or panic.
package app

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akyaiy/GoSally-stream/internal/core/corestate"
	"github.com/akyaiy/GoSally-stream/internal/engine/config"
)

type AppContract interface {
	InitialHooks(fn ...func(cs *corestate.CoreState, x *AppX))
	Run(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX) error) error
	Fallback(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX))

	CallFallback(ctx context.Context)
}

type App struct {
	initHooks []func(cs *corestate.CoreState, x *AppX)
	fallback  func(ctx context.Context, cs *corestate.CoreState, x *AppX)

	Corestate *corestate.CoreState
	AppX      *AppX

	fallbackOnce sync.Once
}

// AppX carries what every hook needs: configuration, the stage logger
// and the structured runtime logger.
type AppX struct {
	Config *config.Compositor
	Log    *log.Logger
	SLog   *slog.Logger
}

func New() *App {
	return &App{
		AppX: &AppX{
			Log: log.Default(),
		},
		Corestate: &corestate.CoreState{Stage: corestate.StageNotReady},
	}
}

func (a *App) InitialHooks(fn ...func(cs *corestate.CoreState, x *AppX)) {
	a.initHooks = append(a.initHooks, fn...)
}

func (a *App) Fallback(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX)) {
	a.fallback = fn
}

// Run executes the initial hooks in order and then fn under a context
// cancelled by SIGINT, SIGTERM or SIGQUIT.
func (a *App) Run(fn func(ctx context.Context, cs *corestate.CoreState, x *AppX) error) (runErr error) {
	for _, hook := range a.initHooks {
		hook(a.Corestate, a.AppX)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			a.AppX.Log.Printf("PANIC recovered: %v", r)
			a.CallFallback(ctx)
			os.Exit(1)
		}
	}()

	if fn != nil {
		runErr = fn(ctx, a.Corestate, a.AppX)
	}
	return runErr
}

func (a *App) CallFallback(ctx context.Context) {
	a.fallbackOnce.Do(func() {
		if a.fallback != nil {
			a.fallback(ctx, a.Corestate, a.AppX)
		}
	})
}
