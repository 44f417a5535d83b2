package kernel

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"oks/internal/file"
	"oks/internal/object"
	"oks/internal/okserr"
	"oks/internal/schema"
	"oks/internal/xmlstream"
)

// Load resolves and loads every file named in paths (spec §4.6 "Load").
// Every schema file reachable through an include chain is parsed and
// registrated in a single-threaded pass first, since a class's closure
// needs a complete class name space to resolve super-classes and
// relationship targets. Every data file reachable through an include
// chain is then parsed by a bounded worker pool (spec §9 "Thread-pool
// sizing") and the whole batch is bound against the schema in one pass,
// so parse order never changes which references resolve. Loading a file
// already present in the kernel's file maps is a no-op.
func (k *Kernel) Load(paths []string) error {
	k.globalMu.Lock()
	defer k.globalMu.Unlock()

	sink := okserr.NewSink()
	k.sinkMu.Lock()
	k.loadSink = sink
	k.sinkMu.Unlock()
	defer func() {
		k.sinkMu.Lock()
		k.loadSink = nil
		k.sinkMu.Unlock()
	}()

	schemaPaths, dataPaths, parentOf, err := k.planLoad(paths)
	if err != nil {
		return err
	}

	if err := k.loadSchemaFiles(schemaPaths, sink); err != nil {
		return err
	}
	if err := k.loadDataFiles(dataPaths, sink); err != nil {
		return err
	}
	k.linkParents(parentOf)

	if sink.HasFatal() {
		return sink.Join()
	}
	return nil
}

// linkParents records, for every file discovered through an include
// (spec §4.6 "re-records the including File as parent if different"),
// which File included it, readable through File.Parent. ReloadData does
// not consult these links and closes no file that becomes unreachable
// from every root. Called with
// the kernel write lock already held, so the file maps need no further
// locking here.
func (k *Kernel) linkParents(parentOf map[string]string) {
	resolve := func(path string) *file.File {
		if f, ok := k.schemaFiles[path]; ok {
			return f
		}
		if f, ok := k.dataFiles[path]; ok {
			return f
		}
		return nil
	}
	for child, parent := range parentOf {
		if parent == "" {
			continue
		}
		cf, pf := resolve(child), resolve(parent)
		if cf != nil && pf != nil {
			cf.SetParent(pf)
		}
	}
}

// planLoad walks paths and every file reachable through their
// <include> blocks, classifying each by its root element and
// deduplicating by resolved absolute path. Schema and data files may
// each include either kind; the caller processes the two lists in
// separate passes regardless of discovery order.
func (k *Kernel) planLoad(paths []string) (schemaPaths, dataPaths []string, parentOf map[string]string, err error) {
	visited := make(map[string]bool)
	parentOf = make(map[string]string)

	var walk func(shortName, includingDir, includingAbs string) error
	walk = func(shortName, includingDir, includingAbs string) error {
		abs, err := k.ResolveFilePath(shortName, includingDir)
		if err != nil {
			return err
		}
		if _, known := parentOf[abs]; !known {
			parentOf[abs] = includingAbs
		}
		if visited[abs] {
			return nil
		}
		visited[abs] = true

		if _, already := k.schemaFiles[abs]; already {
			return nil
		}
		if _, already := k.dataFiles[abs]; already {
			return nil
		}

		root, h, err := peekHeader(abs)
		if err != nil {
			return err
		}
		switch root {
		case "oks-schema":
			schemaPaths = append(schemaPaths, abs)
		case "oks-data":
			dataPaths = append(dataPaths, abs)
		default:
			return fmt.Errorf("kernel: %s: unknown root element <%s>", abs, root)
		}

		dir := filepath.Dir(abs)
		for _, inc := range h.Includes {
			if k.settings.RepoRoot != "" {
				if err := ValidateIncludePath(inc); err != nil {
					return err
				}
			}
			if err := walk(inc, dir, abs); err != nil {
				return err
			}
		}
		return nil
	}

	for _, p := range paths {
		if err := walk(p, "", ""); err != nil {
			return nil, nil, nil, err
		}
	}
	return schemaPaths, dataPaths, parentOf, nil
}

// peekHeader opens path and reads only its root tag and header, without
// parsing the class/object list that follows, so planLoad can discover
// an include chain without paying for a full parse at every hop.
func peekHeader(path string) (string, Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", Header{}, &okserr.FileError{Path: path, Op: "open", Reason: err.Error()}
	}
	defer f.Close()

	r := xmlstream.NewReader(f, path)
	root, err := r.NextStartTag()
	if err != nil {
		return "", Header{}, err
	}
	if _, _, err := readTagAttrs(r); err != nil {
		return "", Header{}, err
	}
	h, err := readHeader(r)
	if err != nil {
		return "", Header{}, err
	}
	return root, h, nil
}

// loadSchemaFiles parses every schema file in paths, then registers and
// registrates every newly parsed class in one pass across the complete,
// now-available class name space (spec §4.3 "Closures").
func (k *Kernel) loadSchemaFiles(paths []string, sink *okserr.Sink) error {
	var newClasses []*schema.Class

	for _, abs := range paths {
		classes, h, err := func() ([]*schema.Class, Header, error) {
			fh, err := os.Open(abs)
			if err != nil {
				return nil, Header{}, &okserr.FileError{Path: abs, Op: "open", Reason: err.Error()}
			}
			defer fh.Close()
			return ReadSchema(fh, abs, k)
		}()
		if err != nil {
			return err
		}

		f, err := file.Open(filepath.Base(abs), abs, file.FormatSchema)
		if err != nil {
			return err
		}
		f.SetHeader(h.Author, h.Host, h.Created)
		f.SetIncludes(h.Includes)
		f.SetItemCount(len(classes))
		for _, c := range classes {
			c.SetFile(f)
		}

		k.schemaFiles[abs] = f
		newClasses = append(newClasses, classes...)
	}

	if len(newClasses) == 0 {
		return nil
	}

	k.schemaMu.Lock()
	for _, c := range newClasses {
		if existing, dup := k.classes[c.Name()]; dup && existing != c {
			if !k.settings.AllowDuplicateClass {
				sink.Add(&okserr.SchemaError{Class: c.Name(), Reason: "duplicate class across loaded files"})
				continue
			}
		}
		k.classes[c.Name()] = c
	}
	all := make([]*schema.Class, 0, len(k.classes))
	for _, c := range k.classes {
		all = append(all, c)
	}
	k.schemaMu.Unlock()

	for _, c := range newClasses {
		if err := c.RegistrateClass(); err != nil {
			sink.Add(&okserr.SchemaError{Class: c.Name(), Reason: err.Error()})
		}
	}
	for _, c := range all {
		c.RebuildSubClasses(all)
	}

	for _, c := range newClasses {
		k.OnClassCreated(c)
	}
	return nil
}

type loadedData struct {
	path    string
	file    *file.File
	objects []*object.Object
	header  Header
}

// loadDataFiles parses every data file in paths with a worker pool bounded
// by Settings.PoolSize (0 selects runtime.NumCPU(), spec §9 "Thread-pool
// sizing"), then binds the whole newly parsed object set in one pass.
func (k *Kernel) loadDataFiles(paths []string, sink *okserr.Sink) error {
	if len(paths) == 0 {
		return nil
	}

	poolSize := k.settings.PoolSize
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}

	results := make([]loadedData, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(poolSize)

	for i, abs := range paths {
		i, abs := i, abs
		g.Go(func() error {
			fh, err := os.Open(abs)
			if err != nil {
				return &okserr.FileError{Path: abs, Op: "open", Reason: err.Error()}
			}
			defer fh.Close()

			f, err := file.Open(filepath.Base(abs), abs, file.FormatData)
			if err != nil {
				return err
			}
			objs, h, err := ReadData(fh, abs, k, k, f)
			if err != nil {
				return err
			}
			results[i] = loadedData{path: abs, file: f, objects: objs, header: h}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var allNew []*object.Object
	k.objectsMu.Lock()
	for _, r := range results {
		r.file.SetHeader(r.header.Author, r.header.Host, r.header.Created)
		r.file.SetIncludes(r.header.Includes)
		r.file.SetItemCount(len(r.objects))
		k.dataFiles[r.path] = r.file
		allNew = append(allNew, r.objects...)
	}
	k.objectsMu.Unlock()

	k.bindObjects(allNew, sink)
	return nil
}
