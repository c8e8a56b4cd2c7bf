package tools

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	luapool "github.com/akyaiy/GoSally-stream/internal/engine/lua"
	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/rpc"
	"github.com/sourcegraph/jsonrpc2"
	lua "github.com/yuin/gopher-lua"
)

// PrepareScript runs before every tool script in the same directory root.
const PrepareScript = "_prepare.lua"

var descriptionRe = regexp.MustCompile(`---\s*#description\s*=\s*"([^"]+)"`)

// LuaTool runs a script from the tools directory. The script reads its
// arguments from In.Params and the caller from In.Caller, and answers by
// filling Out.Result or setting Out.Error = {code = ..., message = ...}.
type LuaTool struct {
	name        string
	path        string
	prepare     string
	description string

	pool *luapool.LuaPool
	log  *slog.Logger
}

// LoadLuaDir finds every script under dir. Files and directories whose
// name starts with "_" are skipped; nested scripts are named with dots,
// so dir/net/ping.lua becomes net.ping.
func LoadLuaDir(dir string, pool *luapool.LuaPool, log *slog.Logger) ([]Tool, error) {
	if log == nil {
		log = slog.Default()
	}
	prepare := filepath.Join(dir, PrepareScript)
	if _, err := os.Stat(prepare); err != nil {
		prepare = ""
	}

	var tools []Tool
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && strings.HasPrefix(d.Name(), "_") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || filepath.Ext(path) != ".lua" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := strings.ReplaceAll(strings.TrimSuffix(filepath.ToSlash(rel), ".lua"), "/", ".")
		if !AllowedName.MatchString(name) {
			log.Warn("skipping script with invalid name", slog.String("script", path))
			return nil
		}
		description, err := extractDescription(path)
		if err != nil {
			return err
		}
		tools = append(tools, &LuaTool{
			name:        name,
			path:        path,
			prepare:     prepare,
			description: description,
			pool:        pool,
			log:         log,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load scripts from %s: %w", dir, err)
	}
	return tools, nil
}

func extractDescription(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	m := descriptionRe.FindStringSubmatch(string(data))
	if len(m) < 2 {
		return "", nil
	}
	return m[1], nil
}

func (t *LuaTool) Name() string                { return t.name }
func (t *LuaTool) Description() string         { return t.description }
func (t *LuaTool) InputSchema() map[string]any { return objectSchema() }

func (t *LuaTool) Call(ctx context.Context, caller auth.Identity, args map[string]any) (any, error) {
	L := t.pool.Get()
	defer t.pool.Put(L)
	L.SetContext(ctx)

	inTable := L.NewTable()
	L.SetField(inTable, "Params", toLua(L, args))
	callerTable := L.NewTable()
	L.SetField(callerTable, "Subject", lua.LString(caller.Subject))
	L.SetField(callerTable, "Issuer", lua.LString(caller.Issuer))
	L.SetField(inTable, "Caller", callerTable)
	L.SetGlobal("In", inTable)

	outTable := L.NewTable()
	L.SetField(outTable, "Result", L.NewTable())
	L.SetGlobal("Out", outTable)

	L.SetGlobal("Log", t.logTable(L))

	for _, script := range []string{t.prepare, t.path} {
		if script == "" {
			continue
		}
		if err := L.DoFile(script); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			t.log.Error("script failed", slog.String("script", script), slog.String("err", err.Error()))
			return nil, &jsonrpc2.Error{Code: rpc.ErrInternalError, Message: err.Error()}
		}
	}

	outTbl, ok := L.GetGlobal("Out").(*lua.LTable)
	if !ok {
		return nil, &jsonrpc2.Error{Code: rpc.ErrInternalError, Message: "Out is not a table"}
	}

	if errVal := outTbl.RawGetString("Error"); errVal != lua.LNil {
		errTbl, ok := errVal.(*lua.LTable)
		if !ok {
			return nil, &jsonrpc2.Error{Code: rpc.ErrInternalError, Message: "Out.Error is not a table"}
		}
		code := int64(rpc.ErrToolFailed)
		message := rpc.ErrToolFailedS
		if c, ok := errTbl.RawGetString("code").(lua.LNumber); ok {
			code = int64(c)
		}
		if msg, ok := errTbl.RawGetString("message").(lua.LString); ok {
			message = string(msg)
		}
		t.log.Info("the script terminated with an error", slog.String("script", t.name), slog.Int64("code", code), slog.String("message", message))
		return nil, &jsonrpc2.Error{Code: code, Message: message}
	}

	return fromLua(outTbl.RawGetString("Result")), nil
}

func (t *LuaTool) logTable(L *lua.LState) *lua.LTable {
	logTable := L.NewTable()
	logFuncs := map[string]func(string, ...any){
		"Info":  t.log.Info,
		"Debug": t.log.Debug,
		"Error": t.log.Error,
		"Warn":  t.log.Warn,
	}
	for name, logFunc := range logFuncs {
		L.SetField(logTable, name, L.NewFunction(func(L *lua.LState) int {
			logFunc(fmt.Sprintf("the script says: %s", L.ToString(1)), slog.String("script", t.name))
			return 0
		}))
	}
	return logTable
}
