package consul

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"
)

var ErrNoNodes = errors.New("no nodes found for service")

// Agent looks up MongoDB nodes in the Consul catalog.
type Agent struct {
	// Server is the Consul HTTP address. Empty uses the api defaults,
	// which honor CONSUL_HTTP_ADDR.
	Server string
}

func (c *Agent) getClient() (cl *api.Client, err error) {
	config := api.DefaultConfig()
	if c.Server != "" {
		config.Address = c.Server
	}

	client, err := api.NewClient(config)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Agent) GetCatalog() (catalog *api.Catalog, err error) {
	client, err := c.getClient()
	if err != nil {
		return nil, err
	}
	return client.Catalog(), nil
}

func (c *Agent) GetService(name, tag string) (nodes []*api.CatalogService, err error) {
	catalog, err := c.GetCatalog()
	if err != nil {
		return nil, err
	}
	options := &api.QueryOptions{
		WaitTime: 10 * time.Second,
	}
	nodes, _, err = catalog.Service(name, tag, options)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoNodes, name)
	}
	return nodes, nil
}

// SeedNode returns host:port of the first registered node of the service
// that has an address and a port.
func (c *Agent) SeedNode(name string) (string, error) {
	nodes, err := c.GetService(name, "")
	if err != nil {
		return "", err
	}
	for _, service := range nodes {
		addr := service.ServiceAddress
		if addr == "" {
			addr = service.Address
		}
		if addr == "" || service.ServicePort == 0 {
			continue
		}
		return net.JoinHostPort(addr, strconv.Itoa(service.ServicePort)), nil
	}
	return "", fmt.Errorf("%w: %s has no node with an address and port", ErrNoNodes, name)
}
