package verify

import (
	"context"
	"strings"

	"github.com/yungbote/dockerlab-backend/internal/catalog"
	"github.com/yungbote/dockerlab-backend/internal/inspector"
)

// EvalCheck evaluates one exercise predicate against live runtime state.
// Missing objects mean "not satisfied" (false, nil). An error is only
// returned when the runtime itself cannot answer, so the engine can apply
// its degradation policy.
func EvalCheck(ctx context.Context, insp inspector.Inspector, chk catalog.Check) (bool, error) {
	if insp == nil {
		return false, inspector.ErrUnavailable
	}

	switch chk.Kind {
	case catalog.CheckContainerFromImage:
		containers, err := insp.ListContainers(ctx, inspector.ListFilter{All: true, FromImage: chk.Image})
		if err != nil {
			return false, err
		}
		return len(containers) > 0, nil

	case catalog.CheckImagePresent:
		return insp.ImageExists(ctx, chk.Image)

	case catalog.CheckContainerRunning:
		c, err := insp.GetContainer(ctx, chk.Container)
		if err != nil {
			if inspector.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		return c.Running, nil

	case catalog.CheckContainerPort:
		c, err := insp.GetContainer(ctx, chk.Container)
		if err != nil {
			if inspector.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		for _, p := range c.Ports {
			if p.ContainerPort == chk.ContainerPort && p.HostPort == chk.HostPort {
				return true, nil
			}
		}
		return false, nil

	case catalog.CheckVolumeExists:
		return insp.VolumeExists(ctx, chk.Volume)

	case catalog.CheckNetworkExists:
		return insp.NetworkExists(ctx, chk.Network)

	case catalog.CheckContainersOnNetwork:
		for _, name := range chk.Containers {
			c, err := insp.GetContainer(ctx, name)
			if err != nil {
				if inspector.IsNotFound(err) {
					return false, nil
				}
				return false, err
			}
			if !c.Running || !c.OnNetwork(chk.Network) {
				return false, nil
			}
		}
		return len(chk.Containers) > 0, nil

	case catalog.CheckAnyPublishedPort:
		containers, err := insp.ListContainers(ctx, inspector.ListFilter{})
		if err != nil {
			return false, err
		}
		for _, c := range containers {
			for _, port := range chk.HostPorts {
				if c.PublishesHostPort(port) {
					return true, nil
				}
			}
		}
		return false, nil

	case catalog.CheckImagesRunning:
		containers, err := insp.ListContainers(ctx, inspector.ListFilter{})
		if err != nil {
			return false, err
		}
		for _, required := range chk.Images {
			found := false
			for _, c := range containers {
				if imageRepository(c.Image) == required {
					found = true
					break
				}
			}
			if !found {
				return false, nil
			}
		}
		return len(chk.Images) > 0, nil

	case catalog.CheckAnyRunningContainer:
		containers, err := insp.ListContainers(ctx, inspector.ListFilter{})
		if err != nil {
			return false, err
		}
		return len(containers) > 0, nil

	case catalog.CheckAlwaysPass:
		// Declared-but-unverifiable exercise: the submitter is trusted.
		return true, nil
	}

	return false, nil
}

// imageRepository reduces an image reference to its bare repository name:
// "docker.io/library/nginx:alpine" -> "nginx". Matching on the parsed
// repository instead of substring search avoids crediting e.g.
// "not-redis-at-all:latest" for a redis exercise.
func imageRepository(ref string) string {
	if i := strings.IndexByte(ref, '@'); i >= 0 {
		ref = ref[:i]
	}
	if i := strings.LastIndexByte(ref, ':'); i >= 0 && !strings.Contains(ref[i:], "/") {
		ref = ref[:i]
	}
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		ref = ref[i+1:]
	}
	return ref
}
