// Package catalog holds the fixed, ordered list of lab exercises. The
// catalog is data: definitions live in catalog.yaml (embedded at build
// time) and are validated once at load. Nothing mutates an exercise after
// that.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var rawCatalog []byte

type CheckKind string

const (
	CheckContainerFromImage  CheckKind = "container_from_image"
	CheckImagePresent        CheckKind = "image_present"
	CheckContainerRunning    CheckKind = "container_running"
	CheckContainerPort       CheckKind = "container_port"
	CheckVolumeExists        CheckKind = "volume_exists"
	CheckNetworkExists       CheckKind = "network_exists"
	CheckContainersOnNetwork CheckKind = "containers_on_network"
	CheckAnyPublishedPort    CheckKind = "any_published_port"
	CheckImagesRunning       CheckKind = "images_running"
	CheckAnyRunningContainer CheckKind = "any_running_container"
	CheckAlwaysPass          CheckKind = "always_pass"
)

// Check is the typed verification predicate attached to an exercise.
// Which fields are meaningful depends on Kind.
type Check struct {
	Kind          CheckKind `yaml:"kind" json:"kind"`
	Image         string    `yaml:"image,omitempty" json:"image,omitempty"`
	Images        []string  `yaml:"images,omitempty" json:"images,omitempty"`
	Container     string    `yaml:"container,omitempty" json:"container,omitempty"`
	Containers    []string  `yaml:"containers,omitempty" json:"containers,omitempty"`
	Network       string    `yaml:"network,omitempty" json:"network,omitempty"`
	Volume        string    `yaml:"volume,omitempty" json:"volume,omitempty"`
	ContainerPort uint16    `yaml:"container_port,omitempty" json:"container_port,omitempty"`
	HostPort      uint16    `yaml:"host_port,omitempty" json:"host_port,omitempty"`
	HostPorts     []uint16  `yaml:"host_ports,omitempty" json:"host_ports,omitempty"`
}

type Exercise struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Hint        string `yaml:"hint" json:"hint"`
	Seed        string `yaml:"seed" json:"-"`
	Points      int    `yaml:"points" json:"points"`
	Difficulty  string `yaml:"difficulty" json:"difficulty"`
	Category    string `yaml:"category" json:"category"`
	Check       Check  `yaml:"check" json:"-"`
}

type Catalog struct {
	exercises   []Exercise
	byID        map[int]Exercise
	totalPoints int
}

var knownKinds = map[CheckKind]bool{
	CheckContainerFromImage:  true,
	CheckImagePresent:        true,
	CheckContainerRunning:    true,
	CheckContainerPort:       true,
	CheckVolumeExists:        true,
	CheckNetworkExists:       true,
	CheckContainersOnNetwork: true,
	CheckAnyPublishedPort:    true,
	CheckImagesRunning:       true,
	CheckAnyRunningContainer: true,
	CheckAlwaysPass:          true,
}

// Load parses the embedded catalog. Exercise ids must be dense 1..N in
// file order and every seed must be distinct: a duplicate seed would make
// two exercises derive the same token, and then submission matching would
// silently depend on iteration order.
func Load() (*Catalog, error) {
	var doc struct {
		Exercises []Exercise `yaml:"exercises"`
	}
	if err := yaml.Unmarshal(rawCatalog, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Exercises) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}

	c := &Catalog{
		exercises: doc.Exercises,
		byID:      make(map[int]Exercise, len(doc.Exercises)),
	}
	seeds := make(map[string]int, len(doc.Exercises))
	for i, ex := range doc.Exercises {
		if ex.ID != i+1 {
			return nil, fmt.Errorf("exercise ids must be dense and ordered: position %d has id %d", i+1, ex.ID)
		}
		if ex.Name == "" || ex.Seed == "" {
			return nil, fmt.Errorf("exercise %d: name and seed are required", ex.ID)
		}
		if ex.Points <= 0 {
			return nil, fmt.Errorf("exercise %d: points must be positive", ex.ID)
		}
		if !knownKinds[ex.Check.Kind] {
			return nil, fmt.Errorf("exercise %d: unknown check kind %q", ex.ID, ex.Check.Kind)
		}
		if prev, dup := seeds[ex.Seed]; dup {
			return nil, fmt.Errorf("exercise %d: seed %q already used by exercise %d", ex.ID, ex.Seed, prev)
		}
		seeds[ex.Seed] = ex.ID
		c.byID[ex.ID] = ex
		c.totalPoints += ex.Points
	}
	return c, nil
}

// Exercises returns the catalog in definition order. The slice is a copy.
func (c *Catalog) Exercises() []Exercise {
	out := make([]Exercise, len(c.exercises))
	copy(out, c.exercises)
	return out
}

func (c *Catalog) ByID(id int) (Exercise, bool) {
	ex, ok := c.byID[id]
	return ex, ok
}

func (c *Catalog) Len() int { return len(c.exercises) }

func (c *Catalog) TotalPoints() int { return c.totalPoints }
