package app

// Command is the startup mode of the application.
type Command string

const (
	// CommandServe starts the console server.
	CommandServe Command = "serve"
	// CommandMigrate applies database migrations.
	CommandMigrate Command = "migrate"
	// CommandHealthcheck performs a local health probe.
	// For Docker health checks in distroless images.
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand parses the subcommand from the command line arguments.
// Empty or unsupported arguments fall back to CommandServe.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}
