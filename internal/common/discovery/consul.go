package discovery

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// NewConsulClient 创建 Consul 客户端。
func NewConsulClient(host string, port int) (*api.Client, error) {
	config := api.DefaultConfig()
	config.Address = fmt.Sprintf("%s:%d", host, port)
	return api.NewClient(config)
}

// ServiceRegistry Consul 服务注册。
// 同一个进程会注册两个实例：gRPC 端口（gRPC check）和 HTTP 端口（HTTP check）。
type ServiceRegistry struct {
	client    *api.Client
	serviceID string
	service   string
	address   string
	port      int
	tags      []string
	check     *api.AgentServiceCheck
}

// NewServiceRegistry 创建使用 gRPC 健康检查的注册器。
func NewServiceRegistry(client *api.Client, serviceID, service, address string, port int, tags []string) *ServiceRegistry {
	return &ServiceRegistry{
		client:    client,
		serviceID: serviceID,
		service:   service,
		address:   address,
		port:      port,
		tags:      tags,
		check: &api.AgentServiceCheck{
			GRPC:                           fmt.Sprintf("%s:%d", address, port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
}

// NewHTTPServiceRegistry 创建使用 HTTP 健康检查的注册器（探测 path）。
func NewHTTPServiceRegistry(client *api.Client, serviceID, service, address string, port int, path string, tags []string) *ServiceRegistry {
	if path == "" {
		path = "/healthz"
	}
	return &ServiceRegistry{
		client:    client,
		serviceID: serviceID,
		service:   service,
		address:   address,
		port:      port,
		tags:      tags,
		check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d%s", address, port, path),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
}

// Register 注册服务。
func (r *ServiceRegistry) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      r.serviceID,
		Name:    r.service,
		Tags:    r.tags,
		Address: r.address,
		Port:    r.port,
		Check:   r.check,
	}
	return r.client.Agent().ServiceRegister(registration)
}

// Deregister 注销服务。
func (r *ServiceRegistry) Deregister() error {
	return r.client.Agent().ServiceDeregister(r.serviceID)
}
