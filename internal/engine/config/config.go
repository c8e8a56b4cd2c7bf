// Package config provides configuration management for the node.
// config is built on top of the third-party modules viper and cobra
package config

import (
	"time"
)

type CompositorContract interface {
	LoadEnv() error
	LoadConf(path string) error
}

type Compositor struct {
	CMDLine *CMDLine
	Conf    *Conf
	Env     *Env
}

type Conf struct {
	Node            *Node       `mapstructure:"node"`
	HTTPServer      *HTTPServer `mapstructure:"http_server"`
	TLS             *TLS        `mapstructure:"tls"`
	Auth            *Auth       `mapstructure:"auth"`
	Tools           *Tools      `mapstructure:"tools"`
	Journal         *Journal    `mapstructure:"journal"`
	Log             *Log        `mapstructure:"log"`
	DisableWarnings *[]string   `mapstructure:"disable_warnings"`
}

type Node struct {
	Mode       *string `mapstructure:"mode"`
	Name       *string `mapstructure:"name"`
	ShowConfig *bool   `mapstructure:"show_config"`
	RunFile    *string `mapstructure:"run_file"`
}

type HTTPServer struct {
	Address         *string        `mapstructure:"address"`
	Port            *string        `mapstructure:"port"`
	StreamPath      *string        `mapstructure:"stream_path"`
	MessagePath     *string        `mapstructure:"message_path"`
	SessionTTL      *time.Duration `mapstructure:"session_ttl"`
	CleanupInterval *time.Duration `mapstructure:"cleanup_interval"`
	KeepAlive       *time.Duration `mapstructure:"keepalive"`
	Timeout         *time.Duration `mapstructure:"timeout"`
	IdleTimeout     *time.Duration `mapstructure:"idle_timeout"`
	MaxConnections  *int           `mapstructure:"max_connections"`
}

type TLS struct {
	TlsEnabled *bool   `mapstructure:"enabled"`
	CertFile   *string `mapstructure:"cert_file"`
	KeyFile    *string `mapstructure:"key_file"`
}

type Auth struct {
	JWTSecret  *string `mapstructure:"jwt_secret"`
	Issuer     *string `mapstructure:"issuer"`
	TokenParam *string `mapstructure:"token_param"`
}

type Tools struct {
	ComDir      *string        `mapstructure:"com_dir"`
	CallTimeout *time.Duration `mapstructure:"call_timeout"`
}

type Journal struct {
	Enabled *bool   `mapstructure:"enabled"`
	Path    *string `mapstructure:"path"`
}

type Log struct {
	JSON    *bool   `mapstructure:"json_format"`
	Level   *string `mapstructure:"level"`
	OutPath *string `mapstructure:"output"`
}

// ConfigEnv structure for environment variables
type Env struct {
	ConfigPath *string `mapstructure:"config_path"`
	NodePath   *string `mapstructure:"node_path"`
}

// CMDLine fields are matched to cobra commands by name, Node being the root.
type CMDLine struct {
	Node    Root
	Serve   Serve
	Call    Call
	Token   Token
	Journal JournalCmd
}

type Root struct {
	ConfigPath string `persistent:"true" full:"config" short:"c" def:"" desc:"Path to configuration file"`
	Debug      bool   `persistent:"true" full:"debug" short:"d" def:"false" desc:"Set debug mode"`
}

type Serve struct {
	ShowConfig bool `full:"show-config" def:"false" desc:"Print the loaded configuration before serving"`
}

type Call struct {
	URL     string        `full:"url" short:"u" def:"http://127.0.0.1:8080" desc:"Base URL of the node"`
	Token   string        `full:"token" short:"t" def:"" desc:"Bearer token, minted locally when empty"`
	Params  string        `full:"params" short:"p" def:"" desc:"JSON params of the request"`
	Timeout time.Duration `full:"timeout" def:"30s" desc:"Request timeout"`
}

type Token struct {
	TTL time.Duration `full:"ttl" def:"1h" desc:"Token lifetime"`
}

type JournalCmd struct {
	Limit int `full:"limit" short:"n" def:"20" desc:"Number of sessions to list"`
}
