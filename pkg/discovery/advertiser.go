package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// Default advertised ports.
const (
	// DefaultSessionPort is the diagnostic session port.
	DefaultSessionPort = 23

	// DefaultUpdatePort is the update channel port.
	DefaultUpdatePort = 3232
)

// MDNSServer is the interface for mDNS service registration.
// This allows for dependency injection in tests.
type MDNSServer interface {
	// Shutdown stops the server.
	Shutdown()
}

// MDNSServerFactory creates MDNSServer instances.
type MDNSServerFactory interface {
	// Register creates a new mDNS server for the given service.
	Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error)
}

// zeroconfServerFactory is the production implementation using grandcat/zeroconf.
type zeroconfServerFactory struct{}

func (z *zeroconfServerFactory) Register(instance, service, domain string, port int, txt []string, ifaces []net.Interface) (MDNSServer, error) {
	return zeroconf.Register(instance, service, domain, port, txt, ifaces)
}

// activeService tracks an active DNS-SD service registration.
type activeService struct {
	server       MDNSServer
	serviceType  ServiceType
	instanceName string
	port         int
}

// AdvertiserConfig holds configuration for the Advertiser.
type AdvertiserConfig struct {
	// Hostname is the service instance name clients see. Required.
	Hostname string

	// SessionPort is the diagnostic session port to advertise (default: 23).
	SessionPort int

	// UpdatePort is the update channel port to advertise (default: 3232).
	UpdatePort int

	// TXT records attached to every service. Optional.
	TXT []string

	// Interfaces specifies which network interfaces to advertise on.
	// If nil, all interfaces are used.
	Interfaces []net.Interface

	// ServerFactory is the factory for creating mDNS servers.
	// If nil, the default zeroconf factory is used.
	ServerFactory MDNSServerFactory

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Advertiser publishes the device's DNS-SD services to the network.
type Advertiser struct {
	config   AdvertiserConfig
	factory  MDNSServerFactory
	log      logging.LeveledLogger
	mu       sync.RWMutex
	services map[ServiceType]*activeService
	closed   bool
}

// NewAdvertiser creates a new Advertiser with the given configuration.
func NewAdvertiser(config AdvertiserConfig) (*Advertiser, error) {
	if config.Hostname == "" {
		return nil, ErrInvalidHostName
	}

	if config.SessionPort <= 0 || config.SessionPort > 65535 {
		config.SessionPort = DefaultSessionPort
	}
	if config.UpdatePort <= 0 || config.UpdatePort > 65535 {
		config.UpdatePort = DefaultUpdatePort
	}

	factory := config.ServerFactory
	if factory == nil {
		factory = &zeroconfServerFactory{}
	}

	a := &Advertiser{
		config:   config,
		factory:  factory,
		services: make(map[ServiceType]*activeService),
	}

	if config.LoggerFactory != nil {
		a.log = config.LoggerFactory.NewLogger("discovery")
	}

	return a, nil
}

// Start begins advertising the given service under the configured hostname.
func (a *Advertiser) Start(serviceType ServiceType) error {
	if !serviceType.IsValid() {
		return ErrInvalidServiceType
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	if _, exists := a.services[serviceType]; exists {
		return ErrAlreadyStarted
	}

	port := a.portFor(serviceType)
	service := serviceType.ServiceString()

	if a.log != nil {
		a.log.Debugf("registering mDNS service: instance=%s service=%s domain=%s port=%d",
			a.config.Hostname, service, DefaultDomain, port)
	}

	server, err := a.factory.Register(
		a.config.Hostname,
		service,
		DefaultDomain,
		port,
		a.config.TXT,
		a.config.Interfaces,
	)
	if err != nil {
		return fmt.Errorf("advertiser: mDNS registration failed for %s: %w", service, err)
	}

	if a.log != nil {
		a.log.Infof("mDNS registration successful for %s", service)
	}

	a.services[serviceType] = &activeService{
		server:       server,
		serviceType:  serviceType,
		instanceName: a.config.Hostname,
		port:         port,
	}

	return nil
}

// EnsureAdvertised starts any of the given services that are not currently
// advertised. Active services are left alone, so it is safe to call on
// every maintenance pass.
func (a *Advertiser) EnsureAdvertised(types ...ServiceType) error {
	var firstErr error
	for _, t := range types {
		if a.IsAdvertising(t) {
			continue
		}
		if err := a.Start(t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Stop stops advertising a specific service type.
func (a *Advertiser) Stop(serviceType ServiceType) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	svc, exists := a.services[serviceType]
	if !exists {
		return ErrNotStarted
	}

	svc.server.Shutdown()
	delete(a.services, serviceType)

	return nil
}

// StopAll stops all active service advertisements.
func (a *Advertiser) StopAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, svc := range a.services {
		svc.server.Shutdown()
	}
	a.services = make(map[ServiceType]*activeService)
}

// Close stops all services and closes the advertiser.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	for _, svc := range a.services {
		svc.server.Shutdown()
	}
	a.services = nil
	a.closed = true

	return nil
}

// IsAdvertising returns true if the given service type is currently being advertised.
func (a *Advertiser) IsAdvertising(serviceType ServiceType) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	_, exists := a.services[serviceType]
	return exists
}

// GetInstanceName returns the instance name for an active service.
// Returns empty string if the service is not active.
func (a *Advertiser) GetInstanceName(serviceType ServiceType) string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if svc, exists := a.services[serviceType]; exists {
		return svc.instanceName
	}
	return ""
}

// portFor maps a service type to its configured port.
// Callers must hold mu.
func (a *Advertiser) portFor(serviceType ServiceType) int {
	switch serviceType {
	case ServiceTypeSession:
		return a.config.SessionPort
	case ServiceTypeUpdate:
		return a.config.UpdatePort
	default:
		return 0
	}
}

// AdvertiserWithContext wraps an Advertiser with context support.
type AdvertiserWithContext struct {
	*Advertiser
	ctx    context.Context
	cancel context.CancelFunc
}

// NewAdvertiserWithContext creates an Advertiser that can be cancelled via context.
func NewAdvertiserWithContext(ctx context.Context, config AdvertiserConfig) (*AdvertiserWithContext, error) {
	adv, err := NewAdvertiser(config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	awc := &AdvertiserWithContext{
		Advertiser: adv,
		ctx:        ctx,
		cancel:     cancel,
	}

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		adv.Close()
	}()

	return awc, nil
}

// Close cancels the context and closes the advertiser.
func (a *AdvertiserWithContext) Close() error {
	a.cancel()
	return a.Advertiser.Close()
}
