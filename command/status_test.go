package command

import (
	"errors"
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/require"

	"github.com/memories/mongoctl/builtin/mongo"
)

func TestStatusCommand_implements(t *testing.T) {
	var _ cli.Command = &StatusCommand{}
}

func TestStatusCommandTable(t *testing.T) {
	meta, ui := testMeta(t, &fakeAdmin{statuses: []*mongo.Status{runningStatus()}})
	c := &StatusCommand{Meta: meta}

	require.Equal(t, 0, c.Run(nil))
	lines := strings.Split(strings.TrimSpace(ui.OutputWriter.String()), "\n")
	require.Equal(t, []string{
		"Replica Set rs0",
		"Node\t\tState\t\tLast Heartbeat",
		"mem-mongodb-0:27017\t\tPRIMARY",
		"mem-mongodb-1:27017\t\tSECONDARY",
	}, lines)
}

func TestStatusCommandJSON(t *testing.T) {
	meta, ui := testMeta(t, &fakeAdmin{statuses: []*mongo.Status{runningStatus()}})
	c := &StatusCommand{Meta: meta}

	require.Equal(t, 0, c.Run([]string{"-json"}))
	require.Contains(t, ui.OutputWriter.String(), `"set": "rs0"`)
}

func TestStatusCommandNotRunning(t *testing.T) {
	status := &mongo.Status{Ok: 0, ErrMsg: "no replset config has been received", Code: 94}
	meta, ui := testMeta(t, &fakeAdmin{statuses: []*mongo.Status{status}})
	c := &StatusCommand{Meta: meta}

	require.Equal(t, 1, c.Run(nil))
	require.Contains(t, ui.ErrorWriter.String(), "no replset config has been received")
}

func TestStatusCommandFailure(t *testing.T) {
	meta, ui := testMeta(t, &fakeAdmin{statusErr: errors.New("auth failed")})
	c := &StatusCommand{Meta: meta}

	require.Equal(t, 1, c.Run(nil))
	require.Contains(t, ui.ErrorWriter.String(), "auth failed")
}
