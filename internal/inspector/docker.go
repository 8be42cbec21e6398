package inspector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"

	"github.com/yungbote/dockerlab-backend/internal/logger"
)

const defaultCallTimeout = 5 * time.Second

type dockerInspector struct {
	cli         *client.Client
	log         *logger.Logger
	callTimeout time.Duration
}

// NewDocker builds an Inspector over the local Docker daemon (honoring
// DOCKER_HOST and friends). Construction only validates configuration;
// reachability is checked per call so the lab keeps working when the
// daemon comes and goes.
func NewDocker(log *logger.Logger) (Inspector, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &dockerInspector{
		cli:         cli,
		log:         log.With("component", "DockerInspector"),
		callTimeout: defaultCallTimeout,
	}, nil
}

func (d *dockerInspector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.callTimeout)
}

// mapErr folds daemon errors into the package taxonomy: missing objects
// stay NotFound, everything else means the runtime is unreachable or
// broken and callers must apply their degradation policy.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errdefs.IsNotFound(err) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %v: %w", op, err, ErrUnavailable)
}

func (d *dockerInspector) Ping(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if _, err := d.cli.Ping(ctx); err != nil {
		return mapErr("ping", err)
	}
	return nil
}

func (d *dockerInspector) ListContainers(ctx context.Context, f ListFilter) ([]Container, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	args := filters.NewArgs()
	if f.FromImage != "" {
		args.Add("ancestor", f.FromImage)
	}
	summaries, err := d.cli.ContainerList(ctx, container.ListOptions{All: f.All, Filters: args})
	if err != nil {
		return nil, mapErr("list containers", err)
	}

	out := make([]Container, 0, len(summaries))
	for _, s := range summaries {
		name := ""
		if len(s.Names) > 0 {
			name = strings.TrimPrefix(s.Names[0], "/")
		}
		ports := make([]PortBinding, 0, len(s.Ports))
		for _, p := range s.Ports {
			ports = append(ports, PortBinding{
				ContainerPort: p.PrivatePort,
				Protocol:      p.Type,
				HostPort:      p.PublicPort,
			})
		}
		out = append(out, Container{
			Name:    name,
			Image:   s.Image,
			Running: s.State == "running",
			Ports:   ports,
		})
	}
	return out, nil
}

func (d *dockerInspector) GetContainer(ctx context.Context, name string) (Container, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	info, err := d.cli.ContainerInspect(ctx, name)
	if err != nil {
		return Container{}, mapErr("inspect container "+name, err)
	}

	c := Container{
		Name:    strings.TrimPrefix(info.Name, "/"),
		Running: info.State != nil && info.State.Running,
	}
	if info.Config != nil {
		c.Image = info.Config.Image
	}
	if info.NetworkSettings != nil {
		for port, bindings := range info.NetworkSettings.Ports {
			if len(bindings) == 0 {
				c.Ports = append(c.Ports, PortBinding{
					ContainerPort: uint16(port.Int()),
					Protocol:      port.Proto(),
				})
				continue
			}
			for _, b := range bindings {
				c.Ports = append(c.Ports, PortBinding{
					ContainerPort: uint16(port.Int()),
					Protocol:      port.Proto(),
					HostPort:      parsePort(b.HostPort),
				})
			}
		}
		for netName := range info.NetworkSettings.Networks {
			c.Networks = append(c.Networks, netName)
		}
	}
	return c, nil
}

func (d *dockerInspector) ImageExists(ctx context.Context, ref string) (bool, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, mapErr("inspect image "+ref, err)
	}
	return true, nil
}

func (d *dockerInspector) VolumeExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	resp, err := d.cli.VolumeList(ctx, volume.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return false, mapErr("list volumes", err)
	}
	// The name filter matches substrings; require an exact hit.
	for _, v := range resp.Volumes {
		if v != nil && v.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (d *dockerInspector) NetworkExists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	nets, err := d.cli.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return false, mapErr("list networks", err)
	}
	for _, n := range nets {
		if n.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// parsePort returns 0 for anything that is not a valid port number,
// including values past 65535.
func parsePort(raw string) uint16 {
	port := 0
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0
		}
		port = port*10 + int(r-'0')
		if port > 65535 {
			return 0
		}
	}
	return uint16(port)
}
