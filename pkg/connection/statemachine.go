package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/clock"

	"catalogmirror/pkg/api/v1alpha1"
	"catalogmirror/pkg/core"
)

// State is the connection state of the machine.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
)

// Attempt results reported to the Observer.
const (
	ResultConnected     = "connected"
	ResultRateLimited   = "rate_limited"
	ResultResolveFailed = "resolve_failed"
	ResultClientFailed  = "client_failed"
	ResultGroupMissing  = "group_missing"
)

const (
	// DefaultCooldown is the minimum spacing between connection attempts.
	DefaultCooldown = time.Second
	// DefaultConnectTimeout bounds a whole connection attempt, resolution and
	// discovery included.
	DefaultConnectTimeout = 10 * time.Second
)

// Observer is told about connection attempts and reachability changes.
type Observer interface {
	ObserveConnectionAttempt(result string)
	SetRemoteReachable(reachable bool)
}

// Session is an established connection to the service model store.
type Session struct {
	Client    dynamic.Interface
	Namespace string
	Version   string
	Events    record.EventRecorder

	close func()
}

// Options configure a Machine.
type Options struct {
	Cooldown       time.Duration
	ConnectTimeout time.Duration
	Clock          clock.PassiveClock
	Logger         logr.Logger
	Observer       Observer
}

// Machine lazily connects to the service model store. It moves from
// DISCONNECTED to CONNECTING to CONNECTED and falls back to DISCONNECTED on
// failure or invalidation. Concurrent callers share a single attempt and
// attempts are spaced at least one cooldown apart.
type Machine struct {
	resolver       Resolver
	factory        ClientFactory
	limiter        *rate.Limiter
	clock          clock.PassiveClock
	connectTimeout time.Duration
	logger         logr.Logger
	observer       Observer
	flight         singleflight.Group

	mu          sync.RWMutex
	state       State
	session     *Session
	lastAttempt time.Time
}

// NewMachine creates a disconnected Machine.
func NewMachine(resolver Resolver, factory ClientFactory, opts Options) *Machine {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	return &Machine{
		resolver:       resolver,
		factory:        factory,
		limiter:        rate.NewLimiter(rate.Every(opts.Cooldown), 1),
		clock:          opts.Clock,
		connectTimeout: opts.ConnectTimeout,
		logger:         opts.Logger.WithName("connection"),
		observer:       opts.Observer,
		state:          StateDisconnected,
	}
}

// State returns the current state.
func (machine *Machine) State() State {
	machine.mu.RLock()
	defer machine.mu.RUnlock()
	return machine.state
}

// Reachable reports whether the store is connected.
func (machine *Machine) Reachable() bool {
	return machine.State() == StateConnected
}

// LastAttempt returns when a connection was last attempted; zero if never.
func (machine *Machine) LastAttempt() time.Time {
	machine.mu.RLock()
	defer machine.mu.RUnlock()
	return machine.lastAttempt
}

// Session returns the established session, or ErrNotConnected.
func (machine *Machine) Session() (*Session, error) {
	machine.mu.RLock()
	defer machine.mu.RUnlock()
	if machine.state != StateConnected || machine.session == nil {
		return nil, core.ErrNotConnected
	}
	return machine.session, nil
}

// EnsureConnected connects unless already connected and reports whether the
// store is reachable. A caller arriving while an attempt is in flight waits
// for that attempt instead of starting another. Outside of an attempt,
// callers within the cooldown of the previous attempt get false immediately.
func (machine *Machine) EnsureConnected(ctx context.Context) bool {
	machine.mu.Lock()
	switch machine.state {
	case StateConnected:
		machine.mu.Unlock()
		return true
	case StateDisconnected:
		now := machine.clock.Now()
		if !machine.limiter.AllowN(now, 1) {
			lastAttempt := machine.lastAttempt
			machine.mu.Unlock()
			machine.observe(ResultRateLimited)
			machine.logger.V(2).Info("connection attempt rate limited", "lastAttempt", lastAttempt)
			return false
		}
		machine.state = StateConnecting
		machine.lastAttempt = now
	}
	machine.mu.Unlock()

	result := machine.flight.DoChan("connect", func() (interface{}, error) {
		return machine.connect(ctx), nil
	})
	select {
	case <-ctx.Done():
		return false
	case shared := <-result:
		return shared.Val.(bool)
	}
}

// connect runs one attempt. It only proceeds from CONNECTING and always
// leaves that state on return, panics included.
func (machine *Machine) connect(parent context.Context) (connected bool) {
	machine.mu.RLock()
	state := machine.state
	machine.mu.RUnlock()
	if state != StateConnecting {
		return state == StateConnected
	}

	var established *Session
	defer func() {
		if recovered := recover(); recovered != nil {
			machine.logger.Error(fmt.Errorf("%v", recovered), "connection attempt panicked")
			established, connected = nil, false
		}
		machine.finish(established)
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), machine.connectTimeout)
	defer cancel()

	conn, err := within(ctx, func() (Connection, error) { return machine.resolver.Resolve(ctx) })
	if err != nil {
		machine.observe(ResultResolveFailed)
		machine.logger.Error(err, "failed to resolve service model store connection")
		return false
	}

	clients, err := machine.factory(conn)
	if err != nil {
		machine.observe(ResultClientFailed)
		machine.logger.Error(err, "failed to build service model store clients", "server", conn.Server)
		return false
	}

	version, err := within(ctx, func() (string, error) { return preferredVersion(clients.Discovery) })
	if err != nil {
		if clients.Close != nil {
			clients.Close()
		}
		machine.observe(ResultGroupMissing)
		machine.logger.V(1).Info("service model store not ready", "server", conn.Server, "reason", err.Error())
		return false
	}

	established = &Session{
		Client:    clients.Dynamic,
		Namespace: conn.Namespace,
		Version:   version,
		Events:    clients.Events,
		close:     clients.Close,
	}
	machine.observe(ResultConnected)
	machine.logger.Info("connected to service model store", "server", conn.Server, "namespace", conn.Namespace, "version", version)
	return true
}

func (machine *Machine) finish(established *Session) {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	if established != nil {
		machine.state = StateConnected
		machine.session = established
	} else {
		machine.state = StateDisconnected
		machine.session = nil
	}
	if machine.observer != nil {
		machine.observer.SetRemoteReachable(established != nil)
	}
}

// Invalidate drops an established session so the next EnsureConnected
// reconnects, subject to the cooldown.
func (machine *Machine) Invalidate(cause error) {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	if machine.state != StateConnected {
		return
	}
	if machine.session != nil && machine.session.close != nil {
		machine.session.close()
	}
	machine.state = StateDisconnected
	machine.session = nil
	if machine.observer != nil {
		machine.observer.SetRemoteReachable(false)
	}
	machine.logger.Info("service model store connection lost", "reason", fmt.Sprint(cause))
}

func (machine *Machine) observe(result string) {
	if machine.observer != nil {
		machine.observer.ObserveConnectionAttempt(result)
	}
}

// within returns what call returns, or the context error once ctx is done.
// Discovery takes no context, so an abandoned call keeps running in the
// background until the client's own timeout ends it. Panics in call are
// returned as errors.
func within[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type answer struct {
		value T
		err   error
	}
	answered := make(chan answer, 1)
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				answered <- answer{err: fmt.Errorf("panic: %v", recovered)}
			}
		}()
		value, err := call()
		answered <- answer{value: value, err: err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case got := <-answered:
		return got.value, got.err
	}
}

func preferredVersion(lister GroupLister) (string, error) {
	if lister == nil {
		return "", fmt.Errorf("no discovery client")
	}
	groups, err := lister.ServerGroups()
	if err != nil {
		return "", fmt.Errorf("list api groups: %w", err)
	}
	if groups == nil {
		return "", fmt.Errorf("api group %s not served", v1alpha1.Group)
	}
	for _, group := range groups.Groups {
		if group.Name != v1alpha1.Group {
			continue
		}
		if group.PreferredVersion.Version == "" {
			return "", fmt.Errorf("api group %s has no preferred version", v1alpha1.Group)
		}
		return group.PreferredVersion.Version, nil
	}
	return "", fmt.Errorf("api group %s not served", v1alpha1.Group)
}
