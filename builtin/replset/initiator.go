// Package replset bootstraps the rs0 replica set: it reports a running set
// as is and initiates one that is not running yet.
package replset

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mitchellh/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/memories/mongoctl/builtin/mongo"
)

// Marker lines written to the Ui ahead of each dump.
const (
	MarkerReplicationOK = "### Replication OK ###"
	MarkerStarting      = "### Starting replication... ###"
	MarkerInitiate      = "### Replica Set initiate ###"
	MarkerStatus        = "### Replica Set status ###"
)

var errEmptyReply = errors.New("empty reply")

type Initiator struct {
	Admin  mongo.Admin
	Ui     cli.Ui
	Logger zerolog.Logger
}

func New(admin mongo.Admin, ui cli.Ui) *Initiator {
	return &Initiator{
		Admin:  admin,
		Ui:     ui,
		Logger: log.With().Str("component", "replset").Logger(),
	}
}

// CheckAndInitiate queries the replication status and, when the set is not
// running, submits the default config and reports the new status. Failed
// admin calls are returned without retrying and satisfy
// errors.Is(err, mongo.ErrAdministrationCallFailed).
func (i *Initiator) CheckAndInitiate() error {
	status, err := i.Admin.ReplicationStatus()
	if err == nil && status == nil {
		err = errEmptyReply
	}
	if err != nil {
		return mongo.AdminFailure("replSetGetStatus", err)
	}
	if status.OK() {
		i.Logger.Info().Str("set", status.Set).Int("members", len(status.Members)).Msg("replication running")
		i.Ui.Output(MarkerReplicationOK)
		return i.dump(status)
	}

	i.Logger.Info().Str("errmsg", status.ErrMsg).Int("code", status.Code).Msg("replication not running, initiating")
	i.Ui.Output(MarkerStarting)

	cfg := mongo.DefaultReplicaSet()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := i.dump(cfg); err != nil {
		return err
	}

	result, err := i.Admin.Initiate(cfg)
	if err == nil && result == nil {
		err = errEmptyReply
	}
	if err != nil {
		return mongo.AdminFailure("replSetInitiate", err)
	}
	if result.OK() {
		i.Logger.Info().Str("set", cfg.Id).Int("members", len(cfg.Members)).Msg("replica set initiated")
	} else {
		i.Logger.Warn().Str("errmsg", result.ErrMsg).Int("code", result.Code).Msg("replSetInitiate refused")
	}
	i.Ui.Output(MarkerInitiate)
	if err := i.dump(result); err != nil {
		return err
	}

	i.Ui.Output(MarkerStatus)
	status, err = i.Admin.ReplicationStatus()
	if err == nil && status == nil {
		err = errEmptyReply
	}
	if err != nil {
		return mongo.AdminFailure("replSetGetStatus", err)
	}
	return i.dump(status)
}

func (i *Initiator) dump(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	i.Ui.Output(string(out))
	return nil
}
