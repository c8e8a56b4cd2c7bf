package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewCompositor() *Compositor {
	return &Compositor{}
}

func (c *Compositor) LoadEnv() error {
	v := viper.New()

	// defaults
	v.SetDefault("config_path", "./config.yaml")
	v.SetDefault("node_path", "./")

	// GS_*
	v.SetEnvPrefix("GS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		return fmt.Errorf("error unmarshaling env: %w", err)
	}

	c.Env = &env
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.name", "noname")
	v.SetDefault("node.mode", "dev")
	v.SetDefault("node.show_config", "false")
	v.SetDefault("node.run_file", MetaDir+"/run.lock")
	v.SetDefault("http_server.address", "0.0.0.0")
	v.SetDefault("http_server.port", "8080")
	v.SetDefault("http_server.stream_path", StreamRoute)
	v.SetDefault("http_server.message_path", MessageRoute)
	v.SetDefault("http_server.session_ttl", "30m")
	v.SetDefault("http_server.cleanup_interval", "5s")
	v.SetDefault("http_server.keepalive", "15s")
	v.SetDefault("http_server.timeout", "5s")
	v.SetDefault("http_server.idle_timeout", "60s")
	v.SetDefault("http_server.max_connections", 100)
	v.SetDefault("tls.enabled", false)
	v.SetDefault("tls.cert_file", "./cert/server.crt")
	v.SetDefault("tls.key_file", "./cert/server.key")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "gosally-stream")
	v.SetDefault("auth.token_param", "token")
	v.SetDefault("tools.com_dir", "./com/")
	v.SetDefault("tools.call_timeout", "30s")
	v.SetDefault("journal.enabled", false)
	v.SetDefault("journal.path", MetaDir+"/journal.db")
	v.SetDefault("log.json_format", "false")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "%2%")
	v.SetDefault("disable_warnings", []string{})
}

// LoadConf reads the YAML file at path. A missing file leaves every key at its default.
func (c *Compositor) LoadConf(path string) error {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("GS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Conf
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	c.Conf = &cfg
	return nil
}

func (c *Compositor) LoadCMDLine(root *cobra.Command) {
	cmdLine := &CMDLine{}
	c.CMDLine = cmdLine

	t := reflect.TypeOf(cmdLine).Elem()
	v := reflect.ValueOf(cmdLine).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)
		ptr := fieldVal.Addr().Interface()
		use := strings.ToLower(field.Name)

		var cmd *cobra.Command
		for _, sub := range root.Commands() {
			if sub.Name() == use {
				cmd = sub
				break
			}
		}

		if use == root.Name() {
			cmd = root
		}

		if cmd == nil {
			continue
		}

		Unmarshal(cmd, ptr)
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

func Unmarshal(cmd *cobra.Command, target any) {
	t := reflect.TypeOf(target).Elem()
	v := reflect.ValueOf(target).Elem()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		valPtr := v.Field(i).Addr().Interface()

		full := field.Tag.Get("full")
		short := field.Tag.Get("short")
		def := field.Tag.Get("def")
		desc := field.Tag.Get("desc")
		isPersistent := field.Tag.Get("persistent") == "true"

		flagSet := cmd.Flags()
		if isPersistent {
			flagSet = cmd.PersistentFlags()
		}

		if field.Type == durationType {
			defVal, err := time.ParseDuration(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default duration: %q\n", def)
			}
			flagSet.DurationVarP(valPtr.(*time.Duration), full, short, defVal, desc)
			continue
		}

		switch field.Type.Kind() {
		case reflect.String:
			flagSet.StringVarP(valPtr.(*string), full, short, def, desc)

		case reflect.Bool:
			defVal, err := strconv.ParseBool(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default bool: %q\n", def)
			}
			flagSet.BoolVarP(valPtr.(*bool), full, short, defVal, desc)

		case reflect.Int:
			defVal, err := strconv.Atoi(def)
			if err != nil && def != "" {
				fmt.Printf("warning: cannot parse default int: %q\n", def)
			}
			flagSet.IntVarP(valPtr.(*int), full, short, defVal, desc)

		case reflect.Slice:
			switch elemKind := field.Type.Elem().Kind(); elemKind {
			case reflect.String:
				defVals := []string{}
				if def != "" {
					defVals = strings.Split(def, ",")
				}
				flagSet.StringSliceVarP(valPtr.(*[]string), full, short, defVals, desc)
			default:
				fmt.Printf("unsupported slice element type: %s\n", elemKind)
			}

		default:
			fmt.Printf("unsupported field type: %s\n", field.Type.Kind())
		}
	}
}
