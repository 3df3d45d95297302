package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/pcd/internal/device"
	"github.com/roach88/pcd/internal/journal"
)

const (
	// DefaultFirstMajor is the first dynamically allocated major number.
	DefaultFirstMajor uint32 = 240

	// dynamicMajors is the size of the dynamic major range.
	dynamicMajors = 15
)

var (
	// ErrBadHandle is returned for unknown or closed handles. It is an
	// INVALID_ARGUMENT store error, so device.IsInvalidArgument matches it.
	ErrBadHandle = &device.Error{Code: device.ErrCodeInvalidArgument, Message: "bad file handle"}

	// ErrNoDevice is returned when a node path has no registered device.
	ErrNoDevice = errors.New("no such device")

	// ErrNodeExists is returned when registering a name already in use.
	ErrNodeExists = errors.New("node already exists")

	// ErrNoDevNum is returned when the dynamic major range is exhausted.
	ErrNoDevNum = errors.New("no free device numbers")
)

// DevNum is a major:minor device number.
type DevNum struct {
	Major uint32
	Minor uint32
}

func (d DevNum) String() string {
	return fmt.Sprintf("%d:%d", d.Major, d.Minor)
}

// DeviceSpec describes a device to register.
type DeviceSpec struct {
	Name     string
	Class    string // defaults to "<name>_class"
	Capacity int    // defaults to device.DefaultCapacity
}

// Info describes a registered device.
type Info struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Class     string `json:"class"`
	ClassPath string `json:"class_path"`
	Node      string `json:"node"`
	DevNum    DevNum `json:"-"`
	Capacity  int64  `json:"capacity"`
}

// Device is a registered device and its backing store.
type Device struct {
	info  Info
	store *device.Store

	// dispatch serializes each callback together with its journal record,
	// so journal order is execution order. Lock order: dispatch, then
	// Framework.mu.
	dispatch sync.Mutex
}

// Info returns the device description.
func (d *Device) Info() Info {
	return d.info
}

// Store returns the backing store.
func (d *Device) Store() *device.Store {
	return d.store
}

// Handle identifies an open file.
type Handle int

// Recorder receives every registration and dispatched operation.
// Implemented by *journal.Journal.
type Recorder interface {
	RegisterDevice(ctx context.Context, dev journal.DeviceRecord) (int64, error)
	Record(ctx context.Context, rec journal.Record) (int64, error)
}

var _ Recorder = (*journal.Journal)(nil)

type openFile struct {
	dev  *Device
	sess *device.Session
}

// Framework registers devices and dispatches file operations to them.
//
// Thread-safety: all methods are safe for concurrent use. The framework
// mutex guards its tables only; store operations run outside it under the
// store's own lock.
type Framework struct {
	firstMajor uint32
	ids        device.IDGenerator
	recorder   Recorder
	log        *slog.Logger

	mu         sync.Mutex
	majors     map[uint32]bool       // GUARDED_BY(mu)
	classes    map[string]int        // GUARDED_BY(mu); class path -> device count
	devices    map[string]*Device    // GUARDED_BY(mu); node path -> device
	handles    map[Handle]*openFile  // GUARDED_BY(mu)
	nextHandle Handle                // GUARDED_BY(mu)
}

// Option configures a Framework.
type Option func(*Framework)

// WithRecorder journals registrations and operations.
func WithRecorder(r Recorder) Option {
	return func(f *Framework) {
		f.recorder = r
	}
}

// WithIDGenerator sets the generator for device and session IDs.
// Default: device.UUIDv7Generator.
func WithIDGenerator(g device.IDGenerator) Option {
	return func(f *Framework) {
		f.ids = g
	}
}

// WithFirstMajor sets the start of the dynamic major range.
func WithFirstMajor(major uint32) Option {
	return func(f *Framework) {
		f.firstMajor = major
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(f *Framework) {
		f.log = l
	}
}

// New creates an empty framework.
func New(opts ...Option) *Framework {
	f := &Framework{
		firstMajor: DefaultFirstMajor,
		ids:        device.UUIDv7Generator{},
		majors:     make(map[uint32]bool),
		classes:    make(map[string]int),
		devices:    make(map[string]*Device),
		handles:    make(map[Handle]*openFile),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = slog.Default()
	}
	return f
}

// Register brings a device up in stages: device number, backing store,
// class, node, journal entry. A failing stage undoes the completed ones.
func (f *Framework) Register(ctx context.Context, spec DeviceSpec) (*Device, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("register: device name is required")
	}
	if strings.ContainsAny(spec.Name, "/ \t") {
		return nil, fmt.Errorf("register: invalid device name %q", spec.Name)
	}
	if spec.Class == "" {
		spec.Class = spec.Name + "_class"
	}
	if spec.Capacity == 0 {
		spec.Capacity = device.DefaultCapacity
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var undo []func()
	fail := func(stage string, err error) (*Device, error) {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		f.log.Error("device registration failed", "device", spec.Name, "stage", stage, "error", err)
		return nil, fmt.Errorf("register %s: %s: %w", spec.Name, stage, err)
	}

	num, err := f.allocDevNum()
	if err != nil {
		return fail("alloc device number", err)
	}
	undo = append(undo, func() { delete(f.majors, num.Major) })
	f.log.Info("device number allocated", "device", spec.Name, "devnum", num.String())

	store, err := device.New(spec.Capacity,
		device.WithIDGenerator(f.ids),
		device.WithLogger(f.log.With("device", spec.Name)),
	)
	if err != nil {
		return fail("add device", err)
	}

	classPath := "/sys/class/" + spec.Class
	f.classes[classPath]++
	undo = append(undo, func() { f.releaseClass(classPath) })

	node := "/dev/" + spec.Name
	if _, exists := f.devices[node]; exists {
		return fail("create node", fmt.Errorf("%w: %s", ErrNodeExists, node))
	}

	dev := &Device{
		info: Info{
			ID:        f.ids.Generate(),
			Name:      spec.Name,
			Class:     spec.Class,
			ClassPath: classPath,
			Node:      node,
			DevNum:    num,
			Capacity:  store.Capacity(),
		},
		store: store,
	}
	f.devices[node] = dev
	undo = append(undo, func() { delete(f.devices, node) })

	if f.recorder != nil {
		rec := journal.DeviceRecord{ID: dev.info.ID, Name: spec.Name, Capacity: spec.Capacity}
		if _, err := f.recorder.RegisterDevice(ctx, rec); err != nil {
			return fail("journal", err)
		}
	}

	f.log.Info("device registered",
		"device", spec.Name,
		"node", node,
		"class", classPath,
		"devnum", num.String(),
		"capacity", spec.Capacity,
	)
	return dev, nil
}

// Unregister tears a device down in reverse order. Handles still open on
// it are released first.
func (f *Framework) Unregister(ctx context.Context, dev *Device) error {
	f.mu.Lock()
	if dev == nil || f.devices[dev.info.Node] != dev {
		f.mu.Unlock()
		return fmt.Errorf("unregister: %w", ErrNoDevice)
	}

	var orphans []Handle
	for h, of := range f.handles {
		if of.dev == dev {
			orphans = append(orphans, h)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i] < orphans[j] })

	files := make([]*openFile, len(orphans))
	for i, h := range orphans {
		files[i] = f.handles[h]
		delete(f.handles, h)
	}

	delete(f.devices, dev.info.Node)
	f.releaseClass(dev.info.ClassPath)
	delete(f.majors, dev.info.DevNum.Major)
	f.mu.Unlock()

	dev.dispatch.Lock()
	for _, of := range files {
		err := dev.store.Release(of.sess)
		f.record(ctx, of, journal.Record{Op: journal.OpRelease, PosAfter: of.sess.Pos()}, err)
	}
	dev.dispatch.Unlock()

	f.log.Info("device unregistered", "device", dev.info.Name, "released_handles", len(files))
	return nil
}

// Devices returns registered devices ordered by node path.
func (f *Framework) Devices() []*Device {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*Device, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].info.Node < out[j].info.Node })
	return out
}

// Lookup returns the device registered at a node path.
func (f *Framework) Lookup(node string) (*Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[node]
	return d, ok
}

// ClassExists reports whether any registered device uses the class path.
func (f *Framework) ClassExists(classPath string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.classes[classPath] > 0
}

// OpenHandles returns the number of open handles across all devices.
func (f *Framework) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handles)
}

// allocDevNum reserves the lowest free major in the dynamic range. Caller holds mu.
func (f *Framework) allocDevNum() (DevNum, error) {
	for m := f.firstMajor; m < f.firstMajor+dynamicMajors; m++ {
		if !f.majors[m] {
			f.majors[m] = true
			return DevNum{Major: m, Minor: 0}, nil
		}
	}
	return DevNum{}, ErrNoDevNum
}

// releaseClass drops one reference to a class path. Caller holds mu.
func (f *Framework) releaseClass(classPath string) {
	f.classes[classPath]--
	if f.classes[classPath] <= 0 {
		delete(f.classes, classPath)
	}
}
