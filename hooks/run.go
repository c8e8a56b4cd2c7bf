package hooks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/core/corestate"
	"github.com/akyaiy/GoSally-stream/internal/core/run_manager"
	"github.com/akyaiy/GoSally-stream/internal/core/utils"
	"github.com/akyaiy/GoSally-stream/internal/engine/app"
	"github.com/akyaiy/GoSally-stream/internal/engine/config"
	"github.com/akyaiy/GoSally-stream/internal/engine/logs"
	luapool "github.com/akyaiy/GoSally-stream/internal/engine/lua"
	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/gateway"
	"github.com/akyaiy/GoSally-stream/internal/server/journal"
	"github.com/akyaiy/GoSally-stream/internal/server/session"
	"github.com/akyaiy/GoSally-stream/internal/server/tools"
	"github.com/spf13/cobra"
	lua "github.com/yuin/gopher-lua"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 10 * time.Second

var nodeApp = app.New()

func Serve(cmd *cobra.Command, args []string) {
	nodeApp.InitialHooks(
		Init0Hook, Init1Hook, Init2Hook,
		Init3Hook, Init4Hook, Init5Hook,
		Init6Hook,
	)

	if err := nodeApp.Run(ServeHook); err != nil {
		nodeApp.AppX.Log.Fatalf("fatal in Run: %v", err)
	}
}

// buildToolbox registers the builtin tools and every script under tools.com_dir.
func buildToolbox(cs *corestate.CoreState, x *app.AppX) (*tools.Toolbox, error) {
	info := tools.ServerInfo{
		Name:    fmt.Sprintf("%s/%s", config.NodeName, *x.Config.Conf.Node.Name),
		Version: cs.NodeVersion,
		NodeID:  cs.NodeID,
	}
	box := tools.New(info, x.SLog)
	if err := box.Register(tools.Builtins(info)...); err != nil {
		return nil, err
	}

	comDir := *x.Config.Conf.Tools.ComDir
	scripts, err := tools.LoadLuaDir(comDir, luapool.NewLuaPool(lua.Options{}), x.SLog)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		x.Log.Printf("%s: tool directory %s does not exist, serving builtin tools only", logs.PrintWarn(), comDir)
	case err != nil:
		return nil, err
	default:
		if err := box.Register(scripts...); err != nil {
			return nil, err
		}
	}
	x.SLog.Info("tools registered", slog.Int("count", box.Len()), slog.String("com-dir", comDir))
	return box, nil
}

func ServeHook(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error {
	ctxMain, cancelMain := context.WithCancel(ctx)
	defer cancelMain()

	conf := x.Config.Conf
	if *conf.Auth.JWTSecret == "" {
		_ = run_manager.Release(cs.RunFile)
		return errors.New("auth.jwt_secret must be set")
	}
	authn, err := auth.NewJWT(*conf.Auth.JWTSecret, *conf.Auth.Issuer)
	if err != nil {
		_ = run_manager.Release(cs.RunFile)
		return err
	}

	var registryOpts []session.Option
	var jrnl *journal.Journal
	if *conf.Journal.Enabled {
		jrnl, err = journal.Open(*conf.Journal.Path, x.SLog)
		if err != nil {
			_ = run_manager.Release(cs.RunFile)
			return err
		}
		registryOpts = append(registryOpts, session.WithObserver(jrnl))
		x.Log.Printf("Session journal at %s", *conf.Journal.Path)
	}

	box, err := buildToolbox(cs, x)
	if err != nil {
		_ = run_manager.Release(cs.RunFile)
		return err
	}

	registry := session.New(*conf.HTTPServer.SessionTTL, x.SLog, registryOpts...)

	gw := gateway.InitGateway(&gateway.GatewayServerInit{
		Log:        x.SLog,
		Registry:   registry,
		Auth:       authn,
		Dispatcher: box,
		Options: gateway.Options{
			StreamPath:  *conf.HTTPServer.StreamPath,
			MessagePath: *conf.HTTPServer.MessagePath,
			TokenParam:  *conf.Auth.TokenParam,
			KeepAlive:   *conf.HTTPServer.KeepAlive,
			CallTimeout: *conf.Tools.CallTimeout,
		},
	})

	// WriteTimeout stays unset: event streams are long lived.
	srv := &http.Server{
		Handler:           gw.Routes(),
		ReadHeaderTimeout: *conf.HTTPServer.Timeout,
		IdleTimeout:       *conf.HTTPServer.IdleTimeout,
		ErrorLog: log.New(&logs.SlogWriter{
			Logger: x.SLog,
			Level:  slog.LevelError,
		}, "", 0),
	}

	nodeApp.Fallback(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		x.Log.Printf("Closing %d sessions", registry.CloseAll(session.ReasonShutdown))
		if err := srv.Shutdown(shutdownCtx); err != nil {
			x.Log.Printf("%s: Failed to stop the server gracefully: %s", logs.PrintError(), err.Error())
		} else {
			x.Log.Printf("Server stopped gracefully")
		}
		if err := gw.Wait(shutdownCtx); err != nil {
			x.Log.Printf("%s: Calls still running at shutdown: %s", logs.PrintError(), err.Error())
		}

		x.Log.Println("Cleaning up...")
		if jrnl != nil {
			if err := jrnl.Close(); err != nil {
				x.Log.Printf("%s: Journal close error: %s", logs.PrintError(), err.Error())
			}
		}
		if err := run_manager.Release(cs.RunFile); err != nil {
			x.Log.Printf("%s: Cleanup error: %s", logs.PrintError(), err.Error())
		}
		x.Log.Println("bye!")
	})

	addr := net.JoinHostPort(*conf.HTTPServer.Address, *conf.HTTPServer.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		nodeApp.CallFallback(ctx)
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if limit := *conf.HTTPServer.MaxConnections; limit > 0 {
		listener = netutil.LimitListener(listener, limit)
	}

	go func() {
		defer utils.CatchPanicWithCancel(cancelMain)
		var err error
		if *conf.TLS.TlsEnabled {
			x.Log.Printf("Serving on %s with TLS... (https://%s%s)", addr, addr, *conf.HTTPServer.StreamPath)
			err = srv.ServeTLS(listener, *conf.TLS.CertFile, *conf.TLS.KeyFile)
		} else {
			x.Log.Printf("Serving on %s... (http://%s%s)", addr, addr, *conf.HTTPServer.StreamPath)
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			x.Log.Printf("%s: Failed to start HTTP server: %s", logs.PrintError(), err.Error())
			cancelMain()
		}
	}()

	registry.StartCleanup(ctxMain, *conf.HTTPServer.CleanupInterval)

	<-ctxMain.Done()
	nodeApp.CallFallback(ctx)
	return nil
}
