package util

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/pulanski/r2db2/wire/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupClientFlags adds the common connection flags to a client command
func SetupClientFlags(cmd *cobra.Command) {
	key := "endpoint"
	cmd.PersistentFlags().String(key, "localhost:5432", WrapString("The address of the r2db2 server (host:port or unix socket path)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of the client"))

	key = "authenticate"
	cmd.PersistentFlags().Bool(key, false, WrapString("Request an authenticated session"))

	key = "username"
	cmd.PersistentFlags().String(key, "", WrapString("Username for authentication"))

	key = "password"
	cmd.PersistentFlags().String(key, "", WrapString("Password for password authentication"))

	key = "token"
	cmd.PersistentFlags().String(key, "", WrapString("Token for token authentication"))

	key = "codecs"
	cmd.PersistentFlags().String(key, "lz4", WrapString("Comma-separated compression codecs to offer (lz4, none)"))

	key = "tls"
	cmd.PersistentFlags().Bool(key, false, WrapString("Connect via TLS"))

	key = "tls-cert"
	cmd.PersistentFlags().String(key, "", WrapString("Client certificate file for certificate authentication"))

	key = "tls-key"
	cmd.PersistentFlags().String(key, "", WrapString("Client certificate key file"))

	key = "tls-ca"
	cmd.PersistentFlags().String(key, "", WrapString("CA bundle used to verify the server"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 = OS default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 = OS default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY (only for TCP)"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, only for TCP)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, 0, WrapString("The linger time (in seconds, only for TCP)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("r2db2")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	return &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		Authenticate:  viper.GetBool("authenticate"),
		Username:      viper.GetString("username"),
		Password:      viper.GetString("password"),
		Token:         viper.GetString("token"),
		Codecs:        SplitList(viper.GetString("codecs")),
		TLSEnabled:    viper.GetBool("tls"),
		TLS: common.TLSConf{
			CertFile:     viper.GetString("tls-cert"),
			KeyFile:      viper.GetString("tls-key"),
			ClientCAFile: viper.GetString("tls-ca"),
		},
		Transport: common.TransportConf{
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
		},
	}
}

// SplitList splits a comma-separated flag value, dropping empty entries
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
