package main

import (
	"fmt"
	"os"

	"github.com/mitchellh/cli"

	clicommands "github.com/memories/mongoctl/cli"
	"github.com/memories/mongoctl/command"
)

const Version = "0.1.0"

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// Until a command has loaded its config, log with the defaults.
	command.ConfigureLogging(command.DefaultConfig(), os.Stderr)

	c := cli.NewCLI("mongoctl", Version)
	c.Args = os.Args[1:]
	c.Commands = clicommands.Commands(nil)

	exitStatus, err := c.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error executing CLI: %s\n", err.Error())
		return 1
	}
	return exitStatus
}
