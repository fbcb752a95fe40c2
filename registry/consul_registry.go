package registry

import (
	"context"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"blogdesk/config"
)

type consulRegistry struct {
	client *consulapi.Client
	logger *zap.SugaredLogger
}

var _ ServiceRegistry = (*consulRegistry)(nil)

// NewConsulRegistry connects to the agent at cfg.Address and fails when it
// does not answer.
func NewConsulRegistry(cfg config.ConsulConfig, log *zap.Logger) (ServiceRegistry, error) {
	logger := log.Sugar().Named("consul")
	consulConfig := consulapi.DefaultConfig()
	if cfg.Address != "" {
		consulConfig.Address = cfg.Address
	}

	client, err := consulapi.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	node, err := client.Agent().NodeName()
	if err != nil {
		logger.Errorw("Failed to connect to Consul agent", "address", consulConfig.Address, "error", err)
		return nil, fmt.Errorf("cannot connect to consul agent at %s: %w", consulConfig.Address, err)
	}
	logger.Infow("Connected to Consul agent", "address", consulConfig.Address, "node", node)

	return &consulRegistry{client: client, logger: logger}, nil
}

func (r *consulRegistry) Register(ctx context.Context, inst Instance) error {
	reg := &consulapi.AgentServiceRegistration{
		ID:      inst.ID,
		Name:    inst.Name,
		Tags:    inst.Tags,
		Port:    inst.Port,
		Address: inst.Address,
		Meta:    inst.Meta,
		Check:   inst.Check,
	}
	err := r.client.Agent().ServiceRegisterOpts(reg, consulapi.ServiceRegisterOpts{}.WithContext(ctx))
	if err != nil {
		r.logger.Errorw("Failed to register service", "service_id", inst.ID, "service_name", inst.Name, "error", err)
		return fmt.Errorf("failed to register service '%s': %w", inst.Name, err)
	}
	r.logger.Infow("Registered service", "service_id", inst.ID, "service_name", inst.Name, "address", inst.Address, "port", inst.Port)
	return nil
}

func (r *consulRegistry) Deregister(ctx context.Context, id string) error {
	err := r.client.Agent().ServiceDeregisterOpts(id, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		r.logger.Errorw("Failed to deregister service", "service_id", id, "error", err)
		return fmt.Errorf("failed to deregister service '%s': %w", id, err)
	}
	r.logger.Infow("Deregistered service", "service_id", id)
	return nil
}

func (r *consulRegistry) Discover(ctx context.Context, name, tag string) ([]string, error) {
	instances, _, err := r.client.Health().Service(name, tag, true, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to discover service '%s': %w", name, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("no healthy instances found for service '%s'", name)
	}

	addrs := make([]string, 0, len(instances))
	for _, inst := range instances {
		// Service.Address is empty when the service inherits the node address.
		addr := inst.Service.Address
		if addr == "" {
			addr = inst.Node.Address
		}
		addrs = append(addrs, fmt.Sprintf("%s:%d", addr, inst.Service.Port))
	}
	r.logger.Debugw("Discovered healthy instances", "service_name", name, "tag", tag, "addresses", addrs)
	return addrs, nil
}

// HTTPCheck probes path over HTTP, for example the /health route.
func HTTPCheck(serviceID, host string, port int, path, interval, timeout string) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        fmt.Sprintf("check_%s_http", serviceID),
		Name:                           fmt.Sprintf("HTTP Check for %s", serviceID),
		HTTP:                           fmt.Sprintf("http://%s:%d%s", host, port, path),
		Method:                         "GET",
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}

// GRPCCheck uses the gRPC health protocol; target is "host:port" or
// "host:port/service".
func GRPCCheck(serviceID, target, interval, timeout string, useTLS bool) *consulapi.AgentServiceCheck {
	return &consulapi.AgentServiceCheck{
		CheckID:                        fmt.Sprintf("check_%s_grpc", serviceID),
		Name:                           fmt.Sprintf("gRPC Check for %s", serviceID),
		GRPC:                           target,
		GRPCUseTLS:                     useTLS,
		Interval:                       interval,
		Timeout:                        timeout,
		DeregisterCriticalServiceAfter: "1m",
	}
}
