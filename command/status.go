package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memories/mongoctl/builtin/mongo"
)

type StatusCommand struct {
	Meta
}

func (c *StatusCommand) Run(args []string) int {
	var asJSON bool
	flags := c.Meta.FlagSet("status", FlagSetDefault)
	flags.Usage = func() { c.Ui.Error(c.Help()) }
	flags.BoolVar(&asJSON, "json", false, "")

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

	result, err := admin.ReplicationStatus()
	if err != nil {
		c.Ui.Error(mongo.AdminFailure("replSetGetStatus", err).Error())
		return 1
	}

	if asJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			c.Ui.Error(err.Error())
			return 1
		}
		c.Ui.Output(string(out))
		if !result.OK() {
			return 1
		}
		return 0
	}

	if !result.OK() {
		c.Ui.Error(fmt.Sprintf("Replication not running: %s", result.ErrMsg))
		return 1
	}

	c.Ui.Output(fmt.Sprintf("Replica Set %s", result.Set))
	c.Ui.Output("Node\t\tState\t\tLast Heartbeat")
	for _, member := range result.Members {
		var out string
		if !member.LastHeartbeat.IsZero() {
			out = fmt.Sprintf("%s\t\t%s\t\t%v", member.Name, stateName(member), member.LastHeartbeat)
		} else {
			out = fmt.Sprintf("%s\t\t%s", member.Name, stateName(member))
		}

		c.Ui.Output(out)
	}
	return 0
}

// stateName prefers the server's own state string.
func stateName(member *mongo.StatusMember) string {
	if member.StateStr != "" {
		return member.StateStr
	}
	return member.State.String()
}

func (c *StatusCommand) Help() string {
	helpText := `
Usage: mongoctl status [options]
  Get the status of a Mongo Cluster
  This command connects to a Mongo server and retrieves the status
  of the replica set. It exits non-zero when replication is not running.

General Options:
  -config=path            Path to a YAML config file. Defaults to the
                          value of MONGOCTL_CONFIG.

  -mongo=addr             The address of the Mongo server if not using Consul.

  -consul-service=service The service name to use when looking up Mongo
                          with consul.

  -consul-server=addr     The address of the consul server to use,
                          this defaults to 127.0.0.1:8500.

  -consul                 Use consul to find Mongo

  -username=username      The username to authenticate with if required.

  -auth-source=db         The database holding the user's credentials.

  -timeout=duration       Dial timeout. Defaults to 5s.

Status Options:

  -json                   Print the full replSetGetStatus reply as JSON.
`
	return strings.TrimSpace(helpText)
}

func (c *StatusCommand) Synopsis() string {
	return "Get the status of a Mongo Cluster"
}
