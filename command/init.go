package command

import (
	"strings"

	"github.com/memories/mongoctl/builtin/replset"
)

type InitCommand struct {
	Meta
}

func (c *InitCommand) Run(args []string) int {
	flags := c.Meta.FlagSet("init", FlagSetDefault)
	flags.Usage = func() { c.Ui.Error(c.Help()) }
	if err := flags.Parse(args); err != nil {
		return 1
	}

	if _, err := c.Meta.Config(); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}

	admin, done, err := c.Meta.Admin()
	if err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	defer done()

	if err := replset.New(admin, c.Ui).CheckAndInitiate(); err != nil {
		c.Ui.Error(err.Error())
		return 1
	}
	return 0
}

func (c *InitCommand) Help() string {
	helpText := `
Usage: mongoctl init [options]
  Initiate the rs0 replica set unless it is already running.
  This command connects to a Mongo server and checks the replication
  status. A running replica set is reported as is. Otherwise the fixed
  three member rs0 configuration is submitted with replSetInitiate and
  the resulting status is printed.

General Options:
  -config=path            Path to a YAML config file. Defaults to the
                          value of MONGOCTL_CONFIG.

  -mongo=addr             The address of the Mongo server if not using Consul.
                          Defaults to 127.0.0.1:27017.

  -consul-service=service The service name to use when looking up Mongo
                          with consul.

  -consul-server=addr     The address of the consul server to use,
                          this defaults to 127.0.0.1:8500.

  -consul                 Use consul to find Mongo

  -username=username      The username to authenticate with if required.

  -auth-source=db         The database holding the user's credentials.

  -timeout=duration       Dial timeout. Defaults to 5s.

  -log-level=level        Log level for stderr diagnostics.
`
	return strings.TrimSpace(helpText)
}

func (c *InitCommand) Synopsis() string {
	return "Initiate the replica set if it is not running"
}
