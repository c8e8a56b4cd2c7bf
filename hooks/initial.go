package hooks

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/core/corestate"
	"github.com/akyaiy/GoSally-stream/internal/core/run_manager"
	"github.com/akyaiy/GoSally-stream/internal/engine/app"
	"github.com/akyaiy/GoSally-stream/internal/engine/config"
	"github.com/akyaiy/GoSally-stream/internal/engine/logs"
)

var Compositor *config.Compositor = config.NewCompositor()

func Init0Hook(cs *corestate.CoreState, x *app.AppX) {
	x.Config = Compositor
	x.Log.SetOutput(os.Stdout)
	x.Log.SetPrefix(logs.SetBrightBlack(fmt.Sprintf("(%s) ", cs.Stage)))
	x.Log.SetFlags(log.Ldate | log.Ltime)
}

// First stage: pre-init
func Init1Hook(cs *corestate.CoreState, x *app.AppX) {
	*cs = corestate.CoreState{
		NodeBinName:        filepath.Base(os.Args[0]),
		NodeVersion:        config.NodeVersion,
		MetaDir:            config.MetaDir,
		Stage:              corestate.StagePreInit,
		StartTimestampUnix: time.Now().Unix(),
	}
}

func Init2Hook(cs *corestate.CoreState, x *app.AppX) {
	x.Log.SetPrefix(logs.SetBlue(fmt.Sprintf("(%s) ", cs.Stage)))

	if err := x.Config.LoadEnv(); err != nil {
		x.Log.Fatalf("env load error: %s", err)
	}
	cs.NodePath = *x.Config.Env.NodePath

	if cfgPath := x.Config.CMDLine.Node.ConfigPath; cfgPath != "" {
		x.Config.Env.ConfigPath = &cfgPath
	}
	if err := x.Config.LoadConf(*x.Config.Env.ConfigPath); err != nil {
		x.Log.Fatalf("conf load error: %s", err)
	}
	if x.Config.CMDLine.Node.Debug {
		debug := "debug"
		x.Config.Conf.Log.Level = &debug
	}
}

func Init3Hook(cs *corestate.CoreState, x *app.AppX) {
	nodeID, err := corestate.NodeID(filepath.Join(cs.NodePath, cs.MetaDir, "uuid"))
	if err != nil {
		x.Log.Fatalf("node id load error: %s", err)
	}
	cs.NodeID = nodeID
	x.Log.Printf("Node uuid is %s", cs.NodeID)
}

// post-init stage
func Init4Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.Stage = corestate.StagePostInit
	x.Log.SetPrefix(logs.SetYellow(fmt.Sprintf("(%s) ", cs.Stage)))

	cs.RunFile = *x.Config.Conf.Node.RunFile
	if !filepath.IsAbs(cs.RunFile) {
		cs.RunFile = filepath.Join(cs.NodePath, cs.RunFile)
	}
	hs := x.Config.Conf.HTTPServer
	err := run_manager.Acquire(cs.RunFile, run_manager.RunInfo{
		PID:     os.Getpid(),
		Version: cs.NodeVersion,
		NodeID:  cs.NodeID,
		Address: fmt.Sprintf("%s:%s", *hs.Address, *hs.Port),
		Started: time.Unix(cs.StartTimestampUnix, 0),
	})
	if err != nil {
		x.Log.Fatalf("Unable to continue node operation: %s", err)
	}
}

func Init5Hook(cs *corestate.CoreState, x *app.AppX) {
	warnings := *x.Config.Conf.DisableWarnings
	if !slices.Contains(warnings, "--WNonStdTmpDir") && os.TempDir() != "/tmp" {
		x.Log.Printf("%s: %s", logs.PrintWarn(), "Non-standard value specified for temporary directory")
	}
	if !slices.Contains(warnings, "--WInsecure") && !*x.Config.Conf.TLS.TlsEnabled {
		x.Log.Printf("%s: %s", logs.PrintWarn(), "TLS is disabled, bearer tokens travel in clear text")
	}
	if *x.Config.Conf.Node.ShowConfig || x.Config.CMDLine.Serve.ShowConfig {
		x.Log.Printf("Loaded configuration:")
		x.Config.Print(os.Stdout, x.Config.Conf)
	}
}

func Init6Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.Stage = corestate.StageReady
	x.Log.SetPrefix(logs.SetGreen(fmt.Sprintf("(%s) ", cs.Stage)))

	newSlog, err := logs.SetupLogger(x.Config.Conf.Log)
	if err != nil {
		_ = run_manager.Release(cs.RunFile)
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
	x.SLog = newSlog
}

// ClientHooks are the stages needed by commands that do not serve:
// configuration is loaded and logs go to stderr.
func ClientHooks() []func(cs *corestate.CoreState, x *app.AppX) {
	return []func(cs *corestate.CoreState, x *app.AppX){
		Init0Hook, Init1Hook, Init2Hook,
		func(cs *corestate.CoreState, x *app.AppX) {
			x.Log.SetOutput(os.Stderr)
			level := "warn"
			if x.Config.CMDLine.Node.Debug {
				level = "debug"
			}
			x.SLog = logs.New(os.Stderr, level, false)
		},
	}
}
