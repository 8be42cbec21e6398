package verify

import (
	"context"
	"testing"

	"github.com/yungbote/dockerlab-backend/internal/catalog"
	"github.com/yungbote/dockerlab-backend/internal/inspector"
)

func TestEvalCheckContainerFromImage(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{Kind: catalog.CheckContainerFromImage, Image: "hello-world"}

	ok, err := EvalCheck(ctx, &fakeInspector{}, chk)
	if err != nil || ok {
		t.Fatalf("empty runtime: got (%v, %v), want (false, nil)", ok, err)
	}

	// Exited containers count: hello-world exits immediately by design.
	insp := &fakeInspector{containers: []inspector.Container{
		{Name: "eager_wright", Image: "hello-world", Running: false},
	}}
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("exited container: got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestEvalCheckContainerRunning(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{Kind: catalog.CheckContainerRunning, Container: "webserver"}

	insp := &fakeInspector{containers: []inspector.Container{
		{Name: "webserver", Image: "nginx:alpine", Running: false},
	}}
	ok, err := EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("stopped container: got (%v, %v), want (false, nil)", ok, err)
	}

	insp.containers[0].Running = true
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("running container: got (%v, %v), want (true, nil)", ok, err)
	}

	// Absence is a normal "not satisfied", not an infrastructure error.
	ok, err = EvalCheck(ctx, &fakeInspector{}, chk)
	if err != nil || ok {
		t.Fatalf("missing container: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestEvalCheckContainerPort(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{
		Kind:          catalog.CheckContainerPort,
		Container:     "webserver-port",
		ContainerPort: 80,
		HostPort:      8080,
	}

	insp := &fakeInspector{containers: []inspector.Container{
		{
			Name:    "webserver-port",
			Image:   "nginx:alpine",
			Running: true,
			Ports: []inspector.PortBinding{
				{ContainerPort: 80, Protocol: "tcp", HostPort: 9090},
			},
		},
	}}
	ok, err := EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("wrong host port: got (%v, %v), want (false, nil)", ok, err)
	}

	insp.containers[0].Ports = append(insp.containers[0].Ports,
		inspector.PortBinding{ContainerPort: 80, Protocol: "tcp", HostPort: 8080})
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("exact mapping: got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestEvalCheckVolumeAndNetwork(t *testing.T) {
	ctx := context.Background()
	insp := &fakeInspector{
		volumes:  map[string]bool{"datos_importantes": true},
		networks: map[string]bool{"mi_red_ctf": true},
	}

	ok, err := EvalCheck(ctx, insp, catalog.Check{Kind: catalog.CheckVolumeExists, Volume: "datos_importantes"})
	if err != nil || !ok {
		t.Fatalf("volume: got (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = EvalCheck(ctx, insp, catalog.Check{Kind: catalog.CheckNetworkExists, Network: "otra_red"})
	if err != nil || ok {
		t.Fatalf("missing network: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestEvalCheckContainersOnNetwork(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{
		Kind:       catalog.CheckContainersOnNetwork,
		Containers: []string{"contenedor1", "contenedor2"},
		Network:    "mi_red_ctf",
	}

	insp := &fakeInspector{containers: []inspector.Container{
		{Name: "contenedor1", Image: "alpine", Running: true, Networks: []string{"mi_red_ctf"}},
		{Name: "contenedor2", Image: "alpine", Running: true, Networks: []string{"bridge"}},
	}}
	ok, err := EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("one container off network: got (%v, %v), want (false, nil)", ok, err)
	}

	insp.containers[1].Networks = []string{"bridge", "mi_red_ctf"}
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("both on network: got (%v, %v), want (true, nil)", ok, err)
	}

	insp.containers[0].Running = false
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("stopped member: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestEvalCheckAnyPublishedPort(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{Kind: catalog.CheckAnyPublishedPort, HostPorts: []uint16{5900, 6080}}

	insp := &fakeInspector{containers: []inspector.Container{
		{
			Name:    "desktop",
			Image:   "dorowu/ubuntu-desktop-lxde-vnc",
			Running: true,
			Ports:   []inspector.PortBinding{{ContainerPort: 80, Protocol: "tcp", HostPort: 6080}},
		},
	}}
	ok, err := EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("alternate port: got (%v, %v), want (true, nil)", ok, err)
	}

	insp.containers[0].Ports[0].HostPort = 8080
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("unrelated port: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestEvalCheckImagesRunning(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{Kind: catalog.CheckImagesRunning, Images: []string{"nginx", "redis"}}

	insp := &fakeInspector{containers: []inspector.Container{
		{Name: "stack-web-1", Image: "docker.io/library/nginx:alpine", Running: true},
		{Name: "stack-cache-1", Image: "redis:7", Running: true},
	}}
	ok, err := EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("both repos running: got (%v, %v), want (true, nil)", ok, err)
	}

	// A lookalike repository name must not satisfy the redis requirement.
	insp.containers[1].Image = "not-redis-at-all:latest"
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("lookalike repo: got (%v, %v), want (false, nil)", ok, err)
	}
}

func TestEvalCheckAnyRunningContainer(t *testing.T) {
	ctx := context.Background()
	chk := catalog.Check{Kind: catalog.CheckAnyRunningContainer}

	insp := &fakeInspector{containers: []inspector.Container{
		{Name: "old", Image: "alpine", Running: false},
	}}
	ok, err := EvalCheck(ctx, insp, chk)
	if err != nil || ok {
		t.Fatalf("only exited containers: got (%v, %v), want (false, nil)", ok, err)
	}

	insp.containers = append(insp.containers, inspector.Container{Name: "live", Image: "alpine", Running: true})
	ok, err = EvalCheck(ctx, insp, chk)
	if err != nil || !ok {
		t.Fatalf("running container: got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestEvalCheckAlwaysPass(t *testing.T) {
	ok, err := EvalCheck(context.Background(), &fakeInspector{}, catalog.Check{Kind: catalog.CheckAlwaysPass})
	if err != nil || !ok {
		t.Fatalf("got (%v, %v), want (true, nil)", ok, err)
	}
}

func TestEvalCheckUnavailableRuntime(t *testing.T) {
	ctx := context.Background()
	down := &fakeInspector{unavailable: true}

	for _, chk := range []catalog.Check{
		{Kind: catalog.CheckContainerFromImage, Image: "hello-world"},
		{Kind: catalog.CheckImagePresent, Image: "nginx:alpine"},
		{Kind: catalog.CheckContainerRunning, Container: "webserver"},
		{Kind: catalog.CheckAnyRunningContainer},
	} {
		ok, err := EvalCheck(ctx, down, chk)
		if ok || !inspector.IsUnavailable(err) {
			t.Fatalf("kind %s: got (%v, %v), want unavailable error", chk.Kind, ok, err)
		}
	}

	ok, err := EvalCheck(ctx, nil, catalog.Check{Kind: catalog.CheckAlwaysPass})
	if ok || !inspector.IsUnavailable(err) {
		t.Fatalf("nil inspector: got (%v, %v), want unavailable error", ok, err)
	}
}

func TestImageRepository(t *testing.T) {
	cases := map[string]string{
		"nginx":                                "nginx",
		"nginx:alpine":                         "nginx",
		"docker.io/library/nginx:alpine":       "nginx",
		"redis:7":                              "redis",
		"ghcr.io/acme/redis@sha256:deadbeef":   "redis",
		"localhost:5000/team/app:v1":           "app",
		"not-redis-at-all:latest":              "not-redis-at-all",
	}
	for ref, want := range cases {
		if got := imageRepository(ref); got != want {
			t.Fatalf("imageRepository(%q) = %q, want %q", ref, got, want)
		}
	}
}
