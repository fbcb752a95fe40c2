// Package registry announces the running service to Consul and looks up
// healthy peers.
package registry

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
)

// Instance is one running copy of a service.
type Instance struct {
	ID      string
	Name    string
	Address string
	Port    int
	Tags    []string
	Meta    map[string]string
	// Check tells the agent how to probe the instance; nil registers it
	// without a health check.
	Check *consulapi.AgentServiceCheck
}

// ServiceRegistry defines the interface for service registration and discovery.
type ServiceRegistry interface {
	Register(ctx context.Context, inst Instance) error
	Deregister(ctx context.Context, id string) error
	// Discover returns "host:port" for every instance passing its checks.
	Discover(ctx context.Context, name, tag string) ([]string, error)
}

// InstanceID names an instance uniquely per host and port.
func InstanceID(name, host string, port int) string {
	return fmt.Sprintf("%s-%s-%d", name, host, port)
}
