package command

import (
	"bufio"
	"flag"
	"io"
	"os"
	"time"

	"github.com/mitchellh/cli"
	"github.com/rs/zerolog/log"

	"github.com/memories/mongoctl/builtin/consul"
	"github.com/memories/mongoctl/builtin/mongo"
)

// FlagSetFlags is an enum to define what flags are present in the
// default FlagSet returned by Meta.FlagSet.
type FlagSetFlags uint

const (
	FlagSetNone    FlagSetFlags = 0
	FlagSetServer  FlagSetFlags = 1 << iota
	FlagSetDefault              = FlagSetServer
)

// Meta contains the meta-options and functionality that nearly every
// mongoctl command inherits.
type Meta struct {
	Ui cli.Ui

	// The things below can be set, but aren't common
	ForceConfig *Config     // Force a config, don't load from disk
	ForceAdmin  mongo.Admin // Use this admin client instead of dialing
	LogWriter   io.Writer   // Where logs go, stderr when nil

	// These are set by the command line flags.
	flags         *flag.FlagSet
	configPath    string
	mongoServer   string
	username      string
	authSource    string
	timeout       time.Duration
	consul        bool
	consulServer  string
	consulService string
	logLevel      string

	config *Config
}

// Config loads the configuration and returns it. If the configuration
// is already loaded, it is returned. Flags that were set on the command
// line override the loaded values; this must be called after the FlagSet
// has been parsed.
func (m *Meta) Config() (*Config, error) {
	if m.config != nil {
		return m.config, nil
	}

	var config *Config
	if m.ForceConfig != nil {
		c := *m.ForceConfig
		config = &c
	} else {
		var err error
		config, err = LoadConfig(m.configPath)
		if err != nil {
			return nil, err
		}
	}

	if m.flags != nil {
		m.flags.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "mongo":
				config.MongoAddr = m.mongoServer
			case "username":
				config.Username = m.username
			case "auth-source":
				config.AuthSource = m.authSource
			case "timeout":
				config.Timeout = m.timeout
			case "consul":
				config.Consul = m.consul
			case "consul-server":
				config.ConsulServer = m.consulServer
			case "consul-service":
				config.ConsulService = m.consulService
			case "log-level":
				config.LogLevel = m.logLevel
			}
		})
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	w := m.LogWriter
	if w == nil {
		w = os.Stderr
	}
	ConfigureLogging(config, w)

	m.config = config
	return m.config, nil
}

// FlagSet returns a FlagSet with the common flags that every
// command implements. The exact behavior of FlagSet can be configured
// using the flags as the second parameter, for example to disable
// server settings on the commands that don't talk to a server.
func (m *Meta) FlagSet(n string, fs FlagSetFlags) *flag.FlagSet {
	f := flag.NewFlagSet(n, flag.ContinueOnError)

	f.StringVar(&m.configPath, "config", "", "")
	f.StringVar(&m.logLevel, "log-level", "", "")

	// FlagSetServer tells us to enable the settings for selecting
	// the server information.
	if fs&FlagSetServer != 0 {
		f.StringVar(&m.consulServer, "consul-server", "", "")
		f.StringVar(&m.consulService, "consul-service", "", "")
		f.BoolVar(&m.consul, "consul", false, "")
		f.StringVar(&m.mongoServer, "mongo", "", "")
		f.StringVar(&m.username, "username", "", "")
		f.StringVar(&m.authSource, "auth-source", "", "")
		f.DurationVar(&m.timeout, "timeout", 0, "")
	}
	// Create an io.Writer that writes to our Ui properly for errors.
	// This is kind of a hack, but it does the job. Basically: create
	// a pipe, use a scanner to break it into lines, and output each line
	// to the UI. Do this forever.
	errR, errW := io.Pipe()
	errScanner := bufio.NewScanner(errR)
	go func() {
		for errScanner.Scan() {
			m.Ui.Error(errScanner.Text())
		}
	}()
	f.SetOutput(errW)

	m.flags = f
	return f
}

// GetNode returns the address of the MongoDB node to talk to, looked up
// in Consul when enabled.
func (m *Meta) GetNode() (n string, err error) {
	config, err := m.Config()
	if err != nil {
		return "", err
	}
	if config.Consul {
		agent := &consul.Agent{Server: config.ConsulServer}
		node, err := agent.SeedNode(config.ConsulService)
		if err != nil {
			return "", err
		}
		log.Debug().Str("service", config.ConsulService).Str("node", node).Msg("found node in consul")
		return node, nil
	}
	return config.MongoAddr, nil
}

// Admin returns the admin client commands run against and a function
// releasing it.
func (m *Meta) Admin() (mongo.Admin, func(), error) {
	if m.ForceAdmin != nil {
		return m.ForceAdmin, func() {}, nil
	}
	config, err := m.Config()
	if err != nil {
		return nil, nil, err
	}
	node, err := m.GetNode()
	if err != nil {
		return nil, nil, err
	}

	opts := mongo.DialOptions{
		Addr:     node,
		Username: config.Username,
		Password: config.Password,
		Source:   config.AuthSource,
		Timeout:  config.Timeout,
	}
	if len(opts.Username) > 0 && len(opts.Password) == 0 {
		opts.Password, err = m.Ui.AskSecret("Password: ")
		if err != nil {
			return nil, nil, err
		}
	}

	log.Debug().Str("node", node).Dur("timeout", opts.Timeout).Msg("dialing mongo")
	session, err := mongo.Dial(opts)
	if err != nil {
		return nil, nil, err
	}
	return session, session.Close, nil
}
