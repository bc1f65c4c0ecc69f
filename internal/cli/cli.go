package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/scriptdeck/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("scriptdeck", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
ScriptDeck - Follow and control apps running on a script-runner backend.

Usage:
  scriptdeck [options] APP_ID...

Arguments:
  APP_ID
    Identifier of an app to connect to. Apps may also be declared in the
    configuration file.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an HCL configuration file.")
	cFlag := flagSet.String("c", "", "Path to an HCL configuration file (shorthand).")
	hostFlag := flagSet.String("host", "", "Backend host. Defaults to localhost.")
	portFlag := flagSet.Int("port", 0, "Backend port. Defaults to 3000.")
	remoteFlag := flagSet.String("remote-url", "", "Base URL of the remote app catalogue.")
	localFlag := flagSet.Bool("local", false, "Treat the apps given as arguments as locally installed.")
	statusPortFlag := flagSet.Int("status-port", 0, "Port for the HTTP status API. 0 is disabled.")
	resolveFlag := flagSet.Duration("resolve-interval", 0, "How often the active-apps list is refreshed.")
	reconnectFlag := flagSet.Duration("reconnect-timeout", 0, "How long a stale session may take to reconnect.")
	maxLinesFlag := flagSet.Int("max-log-lines", 0, "Lines of terminal output kept per app.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := *configFlag
	if path == "" {
		path = *cFlag
	}
	appIDs := flagSet.Args()
	slog.Debug("Targets determined.", "config", path, "apps", appIDs)

	if path == "" && len(appIDs) == 0 {
		slog.Debug("No apps or configuration provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	if err := positive("resolve-interval", *resolveFlag); err != nil {
		return nil, false, err
	}
	if err := positive("reconnect-timeout", *reconnectFlag); err != nil {
		return nil, false, err
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		ConfigPath:       path,
		AppIDs:           appIDs,
		Local:            *localFlag,
		BackendHost:      *hostFlag,
		BackendPort:      *portFlag,
		RemoteURL:        *remoteFlag,
		StatusPort:       *statusPortFlag,
		ResolveInterval:  *resolveFlag,
		ReconnectTimeout: *reconnectFlag,
		MaxLogLines:      *maxLinesFlag,
		LogFormat:        logFormat,
		LogLevel:         logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

func positive(name string, d time.Duration) error {
	if d < 0 {
		return &ExitError{Code: 2, Message: fmt.Sprintf("invalid %s: must not be negative", name)}
	}
	return nil
}
