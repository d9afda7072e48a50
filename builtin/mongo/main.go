package mongo

import (
	"fmt"
	"net"
	"strconv"
)

const (
	// ReplicaSetName is the _id of the replica set this tool bootstraps.
	ReplicaSetName = "rs0"

	// InitialVersion is the config version submitted with replSetInitiate.
	InitialVersion = 1
)

// defaultMembers is the fixed topology, in election-preference order.
var defaultMembers = []struct {
	host     string
	priority int
}{
	{"mem-mongodb-0.mem-mongodb.memories.svc.cluster.local:27017", 2},
	{"mem-mongodb-1.mem-mongodb.memories.svc.cluster.local:27017", 1},
	{"mem-mongodb-2.mem-mongodb.memories.svc.cluster.local:27017", 1},
}

type ReplicaSetConfig struct {
	Id      string    `bson:"_id" json:"_id"`
	Version int       `bson:"version" json:"version"`
	Members []*Member `bson:"members" json:"members"`
}

type Member struct {
	Id       int    `bson:"_id" json:"_id"`
	Host     string `bson:"host" json:"host"`
	Priority int    `bson:"priority" json:"priority"`
}

// DefaultReplicaSet returns a new copy of the rs0 configuration. Member ids
// are assigned by position.
func DefaultReplicaSet() *ReplicaSetConfig {
	cfg := &ReplicaSetConfig{
		Id:      ReplicaSetName,
		Version: InitialVersion,
		Members: make([]*Member, 0, len(defaultMembers)),
	}
	for i, m := range defaultMembers {
		cfg.Members = append(cfg.Members, &Member{
			Id:       i,
			Host:     m.host,
			Priority: m.priority,
		})
	}
	return cfg
}

// Validate reports whether the config is one replSetInitiate could accept.
// The returned error wraps ErrInvalidConfig.
func (c *ReplicaSetConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if c.Id == "" {
		return fmt.Errorf("%w: empty replica set id", ErrInvalidConfig)
	}
	if c.Version < 1 {
		return fmt.Errorf("%w: version %d, must be at least 1", ErrInvalidConfig, c.Version)
	}
	if len(c.Members) == 0 {
		return fmt.Errorf("%w: no members", ErrInvalidConfig)
	}

	hosts := make(map[string]struct{}, len(c.Members))
	for i, member := range c.Members {
		if member == nil {
			return fmt.Errorf("%w: member %d is nil", ErrInvalidConfig, i)
		}
		if member.Id != i {
			return fmt.Errorf("%w: member at position %d has _id %d", ErrInvalidConfig, i, member.Id)
		}
		if err := validHost(member.Host); err != nil {
			return fmt.Errorf("%w: member %d: %v", ErrInvalidConfig, i, err)
		}
		if _, ok := hosts[member.Host]; ok {
			return fmt.Errorf("%w: duplicate host %s", ErrInvalidConfig, member.Host)
		}
		hosts[member.Host] = struct{}{}
		if member.Priority < 0 {
			return fmt.Errorf("%w: member %d has negative priority %d", ErrInvalidConfig, i, member.Priority)
		}
	}
	return nil
}

func validHost(hostport string) error {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return err
	}
	if host == "" {
		return fmt.Errorf("host %q has no hostname", hostport)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("host %q has invalid port", hostport)
	}
	return nil
}
