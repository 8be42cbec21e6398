package verify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/dockerlab-backend/internal/inspector"
	"github.com/yungbote/dockerlab-backend/internal/ledger"
	"github.com/yungbote/dockerlab-backend/internal/telemetry"
)

type fakeInspector struct {
	unavailable bool
	containers  []inspector.Container
	images      map[string]bool
	volumes     map[string]bool
	networks    map[string]bool
}

func (f *fakeInspector) infra() error {
	if f.unavailable {
		return fmt.Errorf("daemon down: %w", inspector.ErrUnavailable)
	}
	return nil
}

func (f *fakeInspector) Ping(context.Context) error { return f.infra() }

func (f *fakeInspector) ListContainers(_ context.Context, filter inspector.ListFilter) ([]inspector.Container, error) {
	if err := f.infra(); err != nil {
		return nil, err
	}
	var out []inspector.Container
	for _, c := range f.containers {
		if !filter.All && !c.Running {
			continue
		}
		if filter.FromImage != "" && c.Image != filter.FromImage {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeInspector) GetContainer(_ context.Context, name string) (inspector.Container, error) {
	if err := f.infra(); err != nil {
		return inspector.Container{}, err
	}
	for _, c := range f.containers {
		if c.Name == name {
			return c, nil
		}
	}
	return inspector.Container{}, fmt.Errorf("container %s: %w", name, inspector.ErrNotFound)
}

func (f *fakeInspector) ImageExists(_ context.Context, ref string) (bool, error) {
	if err := f.infra(); err != nil {
		return false, err
	}
	return f.images[ref], nil
}

func (f *fakeInspector) VolumeExists(_ context.Context, name string) (bool, error) {
	if err := f.infra(); err != nil {
		return false, err
	}
	return f.volumes[name], nil
}

func (f *fakeInspector) NetworkExists(_ context.Context, name string) (bool, error) {
	if err := f.infra(); err != nil {
		return false, err
	}
	return f.networks[name], nil
}

type fakeLedger struct {
	mu        sync.Mutex
	completed map[string]map[int]int
	started   map[string]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		completed: map[string]map[int]int{},
		started:   map[string]time.Time{},
	}
}

func (f *fakeLedger) snapshotLocked(studentID string) ledger.Snapshot {
	snap := ledger.Snapshot{StudentID: studentID, CompletedAt: map[int]time.Time{}}
	snap.StartedAt = f.started[studentID]
	for id, pts := range f.completed[studentID] {
		snap.Completed = append(snap.Completed, id)
		snap.Points += pts
	}
	return snap
}

func (f *fakeLedger) Ensure(_ context.Context, studentID string) (ledger.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.started[studentID]; !ok {
		f.started[studentID] = time.Now().UTC()
	}
	return f.snapshotLocked(studentID), nil
}

func (f *fakeLedger) Snapshot(_ context.Context, studentID string) (ledger.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked(studentID), nil
}

func (f *fakeLedger) IsCompleted(_ context.Context, studentID string, exerciseID int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, done := f.completed[studentID][exerciseID]
	return done, nil
}

func (f *fakeLedger) Credit(_ context.Context, studentID string, exerciseID, points int) (ledger.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.started[studentID]; !ok {
		f.started[studentID] = time.Now().UTC()
	}
	if f.completed[studentID] == nil {
		f.completed[studentID] = map[int]int{}
	}
	if _, done := f.completed[studentID][exerciseID]; done {
		return f.snapshotLocked(studentID), false, nil
	}
	f.completed[studentID][exerciseID] = points
	return f.snapshotLocked(studentID), true, nil
}

func (f *fakeLedger) Remove(_ context.Context, studentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.completed, studentID)
	delete(f.started, studentID)
	return nil
}

func (f *fakeLedger) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started) + len(f.completed)
}

type publishedEvent struct {
	kind      telemetry.EventKind
	studentID string
	data      map[string]any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakePublisher) Publish(kind telemetry.EventKind, studentID string, data map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{kind: kind, studentID: studentID, data: data})
}

func (f *fakePublisher) byKind(kind telemetry.EventKind) []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishedEvent
	for _, e := range f.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}
