// Package kernel implements the OKS Kernel: the registries and locks of
// spec §5, file path resolution and load/bind/reload/save of spec §4.6,
// and the callback dispatch of spec §6 "Callbacks". It is the only
// package that implements schema.Host and object.Host, keeping
// internal/schema and internal/object free of any dependency on it.
package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"oks/internal/file"
	"oks/internal/object"
	"oks/internal/okserr"
	"oks/internal/schema"
)

// Settings are the process-wide toggles spec §6 "Path resolution inputs"
// and §9 "Global state" describe, resolved from oks.yaml/env by
// internal/config and handed to NewKernel as a plain value.
type Settings struct {
	SearchPath  []string
	RepoRoot    string
	StrictPaths bool

	PoolSize int // 0 selects runtime.NumCPU(), per spec §9 "Thread-pool sizing"

	InheritedIDCheck       bool
	AllowDuplicateClass    bool
	AllowDuplicateObjectID bool
	Verbose                bool
	Silence                bool
}

// DefaultSettings returns the kernel's defaults: no search path, no
// repository root, non-strict paths, auto pool sizing, every
// duplicate/inherited-check toggle off.
func DefaultSettings() Settings {
	return Settings{}
}

type objectCallback func(*object.Object)
type classCallback func(*schema.Class, schema.ChangeKind, string)

// Kernel owns the four registries and the locks of spec §5. A zero Kernel
// is not usable; construct with NewKernel.
type Kernel struct {
	// kernel-global rw lock: exclusive for load/unload/reload, shared for
	// read-only query APIs.
	globalMu sync.RWMutex
	// schema rw lock: exclusive while closures are rebuilt, shared for
	// schema accessors.
	schemaMu sync.RWMutex
	// objects rw lock: fine-grained over the per-class object registry.
	objectsMu sync.RWMutex
	// parallel-output mutex: serializes diagnostic printing across
	// worker threads.
	outputMu sync.Mutex

	settings Settings
	log      *slog.Logger

	classes     map[string]*schema.Class
	schemaFiles map[string]*file.File // keyed by absolute path
	dataFiles   map[string]*file.File // keyed by absolute path

	cbMu            sync.Mutex
	createCbs       []objectCallback
	changeCbs       []objectCallback
	deleteCbs       []objectCallback
	classCreatedCbs []classCallback
	classModCbs     []classCallback
	classDelCbs     []classCallback

	loadSink *okserr.Sink // accumulates warnings/errors for the in-progress load; nil when idle
	sinkMu   sync.Mutex
}

// NewKernel constructs an empty Kernel. log may be nil, in which case
// slog.Default() is used.
func NewKernel(settings Settings, log *slog.Logger) *Kernel {
	if log == nil {
		log = slog.Default()
	}
	return &Kernel{
		settings:    settings,
		log:         log,
		classes:     make(map[string]*schema.Class),
		schemaFiles: make(map[string]*file.File),
		dataFiles:   make(map[string]*file.File),
	}
}

// Settings returns the kernel's resolved configuration.
func (k *Kernel) Settings() Settings { return k.settings }

// RegisterCreateCallback, RegisterChangeCallback, and RegisterDeleteCallback
// add object lifecycle callbacks (spec §6 "Callbacks"), dispatched
// synchronously from the thread that performed the mutation.
func (k *Kernel) RegisterCreateCallback(cb func(*object.Object)) {
	k.cbMu.Lock()
	k.createCbs = append(k.createCbs, cb)
	k.cbMu.Unlock()
}
func (k *Kernel) RegisterChangeCallback(cb func(*object.Object)) {
	k.cbMu.Lock()
	k.changeCbs = append(k.changeCbs, cb)
	k.cbMu.Unlock()
}
func (k *Kernel) RegisterDeleteCallback(cb func(*object.Object)) {
	k.cbMu.Lock()
	k.deleteCbs = append(k.deleteCbs, cb)
	k.cbMu.Unlock()
}

// RegisterClassCreatedCallback, RegisterClassModifiedCallback, and
// RegisterClassDeletedCallback add class registry callbacks (spec §6).
func (k *Kernel) RegisterClassCreatedCallback(cb func(*schema.Class, schema.ChangeKind, string)) {
	k.cbMu.Lock()
	k.classCreatedCbs = append(k.classCreatedCbs, cb)
	k.cbMu.Unlock()
}
func (k *Kernel) RegisterClassModifiedCallback(cb func(*schema.Class, schema.ChangeKind, string)) {
	k.cbMu.Lock()
	k.classModCbs = append(k.classModCbs, cb)
	k.cbMu.Unlock()
}
func (k *Kernel) RegisterClassDeletedCallback(cb func(*schema.Class, schema.ChangeKind, string)) {
	k.cbMu.Lock()
	k.classDelCbs = append(k.classDelCbs, cb)
	k.cbMu.Unlock()
}

// --- schema.Host ---

func (k *Kernel) ResolveClass(name string) (*schema.Class, bool) {
	k.schemaMu.RLock()
	defer k.schemaMu.RUnlock()
	c, ok := k.classes[name]
	return c, ok
}

func (k *Kernel) OnClassCreated(c *schema.Class) {
	k.cbMu.Lock()
	cbs := append([]classCallback(nil), k.classCreatedCbs...)
	k.cbMu.Unlock()
	for _, cb := range cbs {
		cb(c, 0, "")
	}
}

func (k *Kernel) OnClassModified(c *schema.Class, kind schema.ChangeKind, hint string) {
	k.cbMu.Lock()
	cbs := append([]classCallback(nil), k.classModCbs...)
	k.cbMu.Unlock()
	for _, cb := range cbs {
		cb(c, kind, hint)
	}
}

func (k *Kernel) OnClassDeleted(c *schema.Class) {
	k.cbMu.Lock()
	cbs := append([]classCallback(nil), k.classDelCbs...)
	k.cbMu.Unlock()
	for _, cb := range cbs {
		cb(c, 0, "")
	}
}

// ReshapeInstances implements schema.Reshaper: it reshapes every live
// Object of c (spec §4.3 "registrate_instances"). An Object that fails
// to convert is reported through Diagnose and left unreshaped rather
// than aborting every other object's reshape — the all-or-nothing abort
// spec §4.3 describes applies to the single Object's conversion, not the
// whole class's instance population.
func (k *Kernel) ReshapeInstances(c *schema.Class) error {
	k.objectsMu.Lock()
	defer k.objectsMu.Unlock()
	for _, handle := range c.Objects() {
		o, ok := handle.(*object.Object)
		if !ok {
			continue
		}
		if err := o.Reshape(c); err != nil {
			k.Diagnose(schema.SeverityError, "reshape %s/%s: %v", c.Name(), o.ID(), err)
		}
	}
	return nil
}

// Diagnose implements both schema.Diagnostics and object.Host's Diagnose:
// object.Severity is a type alias for schema.Severity (see
// object.Severity's doc comment), so one method satisfies both
// interfaces. Diagnostics are logged immediately; error-severity ones
// are also accumulated into the in-progress load's okserr.Sink, so a
// warning never fails a load.
func (k *Kernel) Diagnose(sev schema.Severity, format string, args ...any) {
	k.outputMu.Lock()
	defer k.outputMu.Unlock()
	msg := formatDiagnostic(format, args...)
	level := slog.LevelWarn
	if sev == schema.SeverityError {
		level = slog.LevelError
	}
	k.log.Log(context.Background(), level, msg)

	k.sinkMu.Lock()
	if k.loadSink != nil && sev == schema.SeverityError {
		k.loadSink.Add(&okserr.SchemaError{Reason: msg})
	}
	k.sinkMu.Unlock()
}

// --- object.Host ---

func (k *Kernel) NotifyCreate(o *object.Object) { k.dispatchObject(k.createCbs, o) }
func (k *Kernel) NotifyChange(o *object.Object) { k.dispatchObject(k.changeCbs, o) }
func (k *Kernel) NotifyDelete(o *object.Object) { k.dispatchObject(k.deleteCbs, o) }

func (k *Kernel) dispatchObject(cbs []objectCallback, o *object.Object) {
	k.cbMu.Lock()
	snapshot := append([]objectCallback(nil), cbs...)
	k.cbMu.Unlock()
	for _, cb := range snapshot {
		cb(o)
	}
}

func (k *Kernel) InheritedIDCheck() bool { return k.settings.InheritedIDCheck }

func (k *Kernel) AllowDuplicateObjectID() bool { return k.settings.AllowDuplicateObjectID }

func formatDiagnostic(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
