package kernel

import (
	"os"
	"path/filepath"

	"oks/internal/file"
	"oks/internal/object"
	"oks/internal/okserr"
	"oks/internal/schema"
	"oks/internal/value"
)

// candidateKey identifies a live Object by (class, id) for the reload
// candidate map, since the re-parsed XML only names objects that way.
type candidateKey struct {
	class string
	id    string
}

// ReloadData implements spec §4.6 "Reload": every named data file is
// re-parsed in place, reusing each still-present Object's identity so any
// live reference elsewhere that already points at it keeps pointing at
// current data, then any object that disappeared from its file has its
// incoming references unbound and is destroyed, and finally the whole
// newly parsed batch is bound against the schema in one pass exactly as
// Load does. A path that cannot be resolved fails with the resolution
// error; a schema file named in paths, or a resolved path that is not a
// currently loaded data file, is a StateError.
func (k *Kernel) ReloadData(paths []string) error {
	k.globalMu.Lock()
	defer k.globalMu.Unlock()

	type target struct {
		path string
		file *file.File
	}
	var targets []target
	targetSet := make(map[*file.File]bool)

	for _, p := range paths {
		abs, err := k.ResolveFilePath(p, "")
		if err != nil {
			return err
		}
		if _, isSchema := k.schemaFiles[abs]; isSchema {
			return &okserr.StateError{Reason: "reload: schema files cannot be reloaded: " + abs}
		}
		f, isData := k.dataFiles[abs]
		if !isData {
			return &okserr.StateError{Reason: "reload: not a loaded data file: " + abs}
		}
		targets = append(targets, target{path: abs, file: f})
		targetSet[f] = true
	}
	if len(targets) == 0 {
		return nil
	}
	for _, t := range targets {
		t.file.Unlock()
	}

	sink := okserr.NewSink()
	k.sinkMu.Lock()
	k.loadSink = sink
	k.sinkMu.Unlock()
	defer func() {
		k.sinkMu.Lock()
		k.loadSink = nil
		k.sinkMu.Unlock()
	}()

	// Step 2: snapshot every live object whose file back-pointer names a
	// target file, keyed the way the re-parsed XML will name it.
	k.schemaMu.RLock()
	allClasses := make([]*schema.Class, 0, len(k.classes))
	for _, c := range k.classes {
		allClasses = append(allClasses, c)
	}
	k.schemaMu.RUnlock()

	candidates := make(map[candidateKey]*object.Object)
	k.objectsMu.Lock()
	for _, c := range allClasses {
		for _, handle := range c.Objects() {
			o, ok := handle.(*object.Object)
			if !ok {
				continue
			}
			of, ok := o.File().(*file.File)
			if !ok || !targetSet[of] {
				continue
			}
			candidates[candidateKey{c.Name(), o.ID()}] = o
		}
	}
	k.objectsMu.Unlock()

	// Step 3: pull in any include newly added to a target file's header
	// since it was last loaded. One level deep only — see DESIGN.md.
	var newIncludePaths []string
	for _, t := range targets {
		_, h, err := peekHeader(t.path)
		if err != nil {
			return err
		}
		dir := filepath.Dir(t.path)
		for _, inc := range h.Includes {
			if k.settings.RepoRoot != "" {
				if err := ValidateIncludePath(inc); err != nil {
					return err
				}
			}
			incAbs, err := k.ResolveFilePath(inc, dir)
			if err != nil {
				return err
			}
			if _, already := k.dataFiles[incAbs]; already {
				continue
			}
			if _, already := k.schemaFiles[incAbs]; already {
				continue
			}
			newIncludePaths = append(newIncludePaths, incAbs)
		}
	}
	if len(newIncludePaths) > 0 {
		if err := k.loadDataFiles(newIncludePaths, sink); err != nil {
			return err
		}
	}

	// Step 4: clear RCRs on every candidate before re-parsing, so a parent
	// that re-establishes a composite relationship during the bind pass
	// that follows doesn't collide with a stale RCR.
	for _, o := range candidates {
		o.ClearRCRs()
	}

	reuse := func(className, id string) (*object.Object, bool) {
		o, ok := candidates[candidateKey{className, id}]
		return o, ok
	}

	var allCreated, allReparsed []*object.Object
	seen := make(map[candidateKey]bool)

	for _, t := range targets {
		fh, err := os.Open(t.path)
		if err != nil {
			return &okserr.FileError{Path: t.path, Op: "open", Reason: err.Error()}
		}
		created, reparsed, h, err := ReadDataReload(fh, t.path, k, k, t.file, reuse)
		fh.Close()
		if err != nil {
			return err
		}
		t.file.SetHeader(h.Author, h.Host, h.Created)
		t.file.SetIncludes(h.Includes)
		t.file.SetItemCount(len(created) + len(reparsed))

		allCreated = append(allCreated, created...)
		allReparsed = append(allReparsed, reparsed...)
		for _, o := range reparsed {
			seen[candidateKey{o.Class().Name(), o.ID()}] = true
		}
	}

	// Step 6: any candidate that did not reappear in its file is gone —
	// unbind every incoming reference to it, then destroy it.
	for key, o := range candidates {
		if seen[key] {
			continue
		}
		k.unbindIncoming(o)
		o.Destroy()
	}

	k.bindObjects(append(allCreated, allReparsed...), sink)
	for _, o := range allReparsed {
		k.NotifyChange(o)
	}

	if sink.HasFatal() {
		return sink.Join()
	}
	return nil
}

// unbindIncoming rewrites every live relationship slot that resolves to
// victim into a SemiResolved(class, id) reference, used just before a
// reloaded-away object is destroyed (spec §4.6 "Reload" step 6): Destroy
// only releases victim's own outgoing composite RCRs, so any other
// object still holding a resolved reference to victim would otherwise be
// left pointing at a destroyed Object.
func (k *Kernel) unbindIncoming(victim *object.Object) {
	victimID := victim.ID()

	k.schemaMu.RLock()
	classes := make([]*schema.Class, 0, len(k.classes))
	for _, c := range k.classes {
		classes = append(classes, c)
	}
	k.schemaMu.RUnlock()

	k.objectsMu.Lock()
	defer k.objectsMu.Unlock()
	for _, c := range classes {
		for _, handle := range c.Objects() {
			o, ok := handle.(*object.Object)
			if !ok || o == victim {
				continue
			}
			for _, rel := range c.AllRelationships() {
				slot, ok := c.SlotOf(rel.Name())
				if !ok {
					continue
				}
				cur := o.GetAt(slot.Index)

				if rel.HighCC() == schema.CardinalityMany {
					items := cur.Items()
					changed := false
					next := make([]value.Data, len(items))
					for i, item := range items {
						if item.IsRef() && item.ResolvedObject() == victim {
							next[i] = value.SemiResolved(victim.Class(), victimID)
							changed = true
						} else {
							next[i] = item
						}
					}
					if changed {
						o.SetSlotByIndex(slot.Index, value.List(next))
					}
					continue
				}

				if cur.IsRef() && cur.ResolvedObject() == victim {
					o.SetSlotByIndex(slot.Index, value.SemiResolved(victim.Class(), victimID))
				}
			}
		}
	}
}
