// Package inspector is a read-only, typed facade over the container
// runtime. Verification predicates only ever see these shapes; they never
// dig through raw inspect payloads.
package inspector

import (
	"context"
	"errors"
)

// ErrNotFound reports that a queried object does not exist. Predicates
// treat it as "not satisfied".
var ErrNotFound = errors.New("runtime object not found")

// ErrUnavailable reports that the runtime itself could not be reached.
// The verification engine treats it as a signal to degrade, not as a
// predicate result.
var ErrUnavailable = errors.New("container runtime unavailable")

func IsNotFound(err error) bool    { return errors.Is(err, ErrNotFound) }
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }

type PortBinding struct {
	ContainerPort uint16 `json:"container_port"`
	Protocol      string `json:"protocol"`
	HostPort      uint16 `json:"host_port"`
}

type Container struct {
	Name     string        `json:"name"`
	Image    string        `json:"image"`
	Running  bool          `json:"running"`
	Ports    []PortBinding `json:"ports"`
	Networks []string      `json:"networks"`
}

// PublishesHostPort reports whether any binding exposes the given host
// port.
func (c Container) PublishesHostPort(port uint16) bool {
	for _, p := range c.Ports {
		if p.HostPort == port {
			return true
		}
	}
	return false
}

// OnNetwork reports whether the container is attached to the named
// network.
func (c Container) OnNetwork(name string) bool {
	for _, n := range c.Networks {
		if n == name {
			return true
		}
	}
	return false
}

// ListFilter narrows ListContainers. The zero value lists running
// containers only.
type ListFilter struct {
	All       bool
	FromImage string
}

type Inspector interface {
	Ping(ctx context.Context) error
	ListContainers(ctx context.Context, f ListFilter) ([]Container, error)
	GetContainer(ctx context.Context, name string) (Container, error)
	ImageExists(ctx context.Context, ref string) (bool, error)
	VolumeExists(ctx context.Context, name string) (bool, error)
	NetworkExists(ctx context.Context, name string) (bool, error)
}
