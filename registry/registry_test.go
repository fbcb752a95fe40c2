package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"blogdesk/config"
)

// fakeAgent answers the handful of Consul agent endpoints the registry uses.
type fakeAgent struct {
	mu           sync.Mutex
	registered   map[string]consulapi.AgentServiceRegistration
	deregistered []string
}

func (a *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	w.Header().Set("X-Consul-Index", "1")
	w.Header().Set("X-Consul-LastContact", "0")
	w.Header().Set("X-Consul-KnownLeader", "true")

	switch {
	case r.URL.Path == "/v1/agent/self":
		_ = json.NewEncoder(w).Encode(map[string]any{"Config": map[string]any{"NodeName": "node-1"}})
	case r.URL.Path == "/v1/agent/service/register":
		var reg consulapi.AgentServiceRegistration
		if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.registered[reg.ID] = reg
	case strings.HasPrefix(r.URL.Path, "/v1/agent/service/deregister/"):
		id := strings.TrimPrefix(r.URL.Path, "/v1/agent/service/deregister/")
		delete(a.registered, id)
		a.deregistered = append(a.deregistered, id)
	case strings.HasPrefix(r.URL.Path, "/v1/health/service/"):
		name := strings.TrimPrefix(r.URL.Path, "/v1/health/service/")
		entries := []map[string]any{}
		for _, reg := range a.registered {
			if reg.Name != name {
				continue
			}
			entries = append(entries, map[string]any{
				"Node":    map[string]any{"Node": "node-1", "Address": "10.0.0.5"},
				"Service": map[string]any{"ID": reg.ID, "Service": reg.Name, "Address": reg.Address, "Port": reg.Port},
			})
		}
		_ = json.NewEncoder(w).Encode(entries)
	default:
		http.NotFound(w, r)
	}
}

func newRegistry(t *testing.T) (ServiceRegistry, *fakeAgent) {
	t.Helper()
	agent := &fakeAgent{registered: map[string]consulapi.AgentServiceRegistration{}}
	srv := httptest.NewServer(agent)
	t.Cleanup(srv.Close)

	reg, err := NewConsulRegistry(config.ConsulConfig{Address: strings.TrimPrefix(srv.URL, "http://")}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return reg, agent
}

func TestConsulRegisterDiscoverDeregister(t *testing.T) {
	ctx := context.Background()
	reg, agent := newRegistry(t)

	id := InstanceID("blogdesk-http", "api-1", 8080)
	assert.Equal(t, "blogdesk-http-api-1-8080", id)
	require.NoError(t, reg.Register(ctx, Instance{
		ID:      id,
		Name:    "blogdesk-http",
		Address: "api-1",
		Port:    8080,
		Tags:    []string{"http"},
		Meta:    map[string]string{"protocol": "http"},
		Check:   HTTPCheck(id, "api-1", 8080, "/health", "10s", "1s"),
	}))
	require.NoError(t, reg.Register(ctx, Instance{ID: "inherits-node", Name: "blogdesk-http", Port: 9090}))

	stored := agent.registered[id]
	assert.Equal(t, []string{"http"}, stored.Tags)
	require.NotNil(t, stored.Check)
	assert.Equal(t, "http://api-1:8080/health", stored.Check.HTTP)

	addrs, err := reg.Discover(ctx, "blogdesk-http", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"api-1:8080", "10.0.0.5:9090"}, addrs)

	_, err = reg.Discover(ctx, "unknown", "")
	assert.Error(t, err)

	require.NoError(t, reg.Deregister(ctx, id))
	assert.Equal(t, []string{id}, agent.deregistered)
}

func TestNewConsulRegistryUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	_, err := NewConsulRegistry(config.ConsulConfig{Address: addr}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestCheckBuilders(t *testing.T) {
	h := HTTPCheck("svc-1", "localhost", 8080, "/health", "10s", "2s")
	assert.Equal(t, "check_svc-1_http", h.CheckID)
	assert.Equal(t, "http://localhost:8080/health", h.HTTP)
	assert.Equal(t, "GET", h.Method)
	assert.Equal(t, "1m", h.DeregisterCriticalServiceAfter)

	g := GRPCCheck("svc-1", "localhost:50051/blogdesk", "10s", "2s", false)
	assert.Equal(t, "check_svc-1_grpc", g.CheckID)
	assert.Equal(t, "localhost:50051/blogdesk", g.GRPC)
	assert.False(t, g.GRPCUseTLS)
	assert.Equal(t, "10s", g.Interval)
}
