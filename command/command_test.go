package command

import (
	"io"
	"testing"

	"github.com/mitchellh/cli"

	"github.com/memories/mongoctl/builtin/mongo"
)

type fakeAdmin struct {
	statuses  []*mongo.Status
	statusErr error
	calls     int
	initiated []*mongo.ReplicaSetConfig
}

func (f *fakeAdmin) ReplicationStatus() (*mongo.Status, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	status := f.statuses[f.calls]
	if f.calls < len(f.statuses)-1 {
		f.calls++
	}
	return status, nil
}

func (f *fakeAdmin) Initiate(cfg *mongo.ReplicaSetConfig) (*mongo.InitiateResult, error) {
	f.initiated = append(f.initiated, cfg)
	return &mongo.InitiateResult{Ok: 1}, nil
}

func testMeta(t *testing.T, admin mongo.Admin) (Meta, *cli.MockUi) {
	t.Helper()
	ui := cli.NewMockUi()
	return Meta{
		Ui:          ui,
		ForceConfig: DefaultConfig(),
		ForceAdmin:  admin,
		LogWriter:   io.Discard,
	}, ui
}

func runningStatus() *mongo.Status {
	return &mongo.Status{
		Ok:  1,
		Set: "rs0",
		Members: []*mongo.StatusMember{
			{Id: 0, Name: "mem-mongodb-0:27017", State: mongo.StatePrimary, StateStr: "PRIMARY"},
			{Id: 1, Name: "mem-mongodb-1:27017", State: mongo.StateSecondary},
		},
	}
}
