package serve

import (
	"context"
	"fmt"
	"strings"

	cmdUtil "github.com/pulanski/r2db2/cmd/util"
	"github.com/joho/godotenv"
	"github.com/pulanski/r2db2/wire/auth"
	"github.com/pulanski/r2db2/wire/common"
	"github.com/pulanski/r2db2/wire/engine"
	"github.com/pulanski/r2db2/wire/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the r2db2 server",
		Long:    `Start the r2db2 server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is R2DB2_<flag> (e.g. R2DB2_MAX_CONNECTIONS=500)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:5432", cmdUtil.WrapString("The address on which the server will listen (host:port or a unix socket path)"))

	key = "max-connections"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Maximum number of simultaneous connections. Connections arriving above the ceiling are rejected with an error response"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Per-read/write socket timeout in seconds (0 = none)"))

	key = "codecs"
	ServeCmd.PersistentFlags().String(key, "lz4", cmdUtil.WrapString("Comma-separated compression codecs the server will negotiate (lz4, none)"))

	key = "require-auth"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Require every client to authenticate. Clients requesting unauthenticated mode are rejected"))

	key = "auth-method"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Authentication method to challenge clients with (password, token, certificate)"))

	key = "auth-attempts"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Number of failed authentication attempts after which a connection is terminated. Required when authentication is enabled, there is no default"))

	key = "users"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Comma-separated user:password pairs for password authentication (e.g. 'alice:secret,bob:hunter2')"))

	key = "token-secret"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("HMAC secret for validating JWT tokens (token authentication)"))

	key = "tls-cert"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("TLS certificate file. TLS is enabled when both tls-cert and tls-key are set"))

	key = "tls-key"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("TLS private key file"))

	key = "tls-client-ca"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("CA bundle for verifying client certificates (required for certificate authentication)"))

	key = "transport-write-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket write buffer (in KB, 0 = OS default)"))

	key = "transport-read-buffer"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The size of the socket read buffer (in KB, 0 = OS default)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY (only for TCP)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval (in seconds, only for TCP)"))

	key = "transport-tcp-linger"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The linger time (in seconds, only for TCP)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Transport = common.TransportConf{
		Endpoint: viper.GetString("endpoint"),
		SocketConf: common.SocketConf{
			WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
			ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
		},
		TCPConf: common.TCPConf{
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
			TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
		},
	}
	serveCmdConfig.TLS = common.TLSConf{
		CertFile:     viper.GetString("tls-cert"),
		KeyFile:      viper.GetString("tls-key"),
		ClientCAFile: viper.GetString("tls-client-ca"),
	}
	serveCmdConfig.Auth = common.AuthConf{
		Required:     viper.GetBool("require-auth"),
		Method:       viper.GetString("auth-method"),
		AttemptLimit: viper.GetInt("auth-attempts"),
	}
	serveCmdConfig.Codecs = cmdUtil.SplitList(viper.GetString("codecs"))
	serveCmdConfig.MaxConnections = viper.GetInt("max-connections")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.Auth.Required && serveCmdConfig.Auth.Method == "" {
		return fmt.Errorf("require-auth needs an auth-method")
	}
	if serveCmdConfig.Auth.Method == "certificate" && !serveCmdConfig.TLS.Enabled() {
		return fmt.Errorf("certificate authentication requires TLS (tls-cert and tls-key)")
	}

	return nil
}

// run starts the r2db2 server
func run(_ *cobra.Command, _ []string) error {
	common.InitLoggers(serveCmdConfig.LogLevel)
	fmt.Println(serveCmdConfig.String())

	// Build the authentication collaborators the configured method needs
	var store auth.ICredentialStore
	var tokens auth.ITokenValidator

	if users := viper.GetString("users"); users != "" {
		parsed, err := parseUsers(users)
		if err != nil {
			return err
		}
		store, err = auth.NewStaticCredentialStore(parsed)
		if err != nil {
			return err
		}
	}
	if secret := viper.GetString("token-secret"); secret != "" {
		tokens = auth.NewJWTValidator([]byte(secret))
	}

	serv, err := server.New(serveCmdConfig, engine.NewEchoEngine(), store, tokens)
	if err != nil {
		return err
	}

	return serv.Serve(context.Background())
}

// parseUsers parses a comma-separated list of user:password pairs
func parseUsers(value string) (map[string]string, error) {
	users := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid user format: %s (expected user:password)", pair)
		}
		users[parts[0]] = parts[1]
	}
	return users, nil
}

// initConfig reads in ENV variables if set
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("r2db2")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}
