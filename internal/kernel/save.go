package kernel

import (
	"io"

	"oks/internal/file"
	"oks/internal/object"
	"oks/internal/okserr"
	"oks/internal/schema"
)

func headerFromFile(f *file.File) Header {
	return Header{
		Author:      f.Author(),
		Host:        f.Host(),
		Created:     f.CreatedAt(),
		Type:        f.TypeLabel(),
		LogicalName: f.LogicalName(),
		Format:      f.Format().String(),
		ItemCount:   f.ItemCount(),
		Includes:    f.Includes(),
	}
}

// SaveAllSchema iterates the schema-file registry and writes each file
// with only the classes whose file back-pointer equals it (spec §4.6
// "Save": "a per-file save writes only classes ... whose file
// back-pointer equals the target file handle").
func (k *Kernel) SaveAllSchema() error {
	k.globalMu.RLock()
	defer k.globalMu.RUnlock()

	k.schemaMu.RLock()
	byFile := make(map[*file.File][]*schema.Class)
	for _, c := range k.classes {
		cf, ok := c.File().(*file.File)
		if !ok || cf == nil {
			continue
		}
		byFile[cf] = append(byFile[cf], c)
	}
	files := make(map[string]*file.File, len(k.schemaFiles))
	for path, f := range k.schemaFiles {
		files[path] = f
	}
	k.schemaMu.RUnlock()

	for _, f := range files {
		classes := byFile[f]
		f.SetItemCount(len(classes))
		if err := f.WriteAtomic(func(w io.Writer) error {
			return WriteSchema(w, classes, headerFromFile(f))
		}); err != nil {
			return err
		}
	}
	return nil
}

// SaveAllData mirrors SaveAllSchema for the data-file registry and the
// live object set.
func (k *Kernel) SaveAllData() error {
	k.globalMu.RLock()
	defer k.globalMu.RUnlock()

	k.schemaMu.RLock()
	allClasses := make([]*schema.Class, 0, len(k.classes))
	for _, c := range k.classes {
		allClasses = append(allClasses, c)
	}
	k.schemaMu.RUnlock()

	k.objectsMu.RLock()
	byFile := make(map[*file.File][]*object.Object)
	for _, c := range allClasses {
		for _, handle := range c.Objects() {
			o, ok := handle.(*object.Object)
			if !ok {
				continue
			}
			of, ok := o.File().(*file.File)
			if !ok || of == nil {
				continue
			}
			byFile[of] = append(byFile[of], o)
		}
	}
	files := make(map[string]*file.File, len(k.dataFiles))
	for path, f := range k.dataFiles {
		files[path] = f
	}
	k.objectsMu.RUnlock()

	for _, f := range files {
		objs := byFile[f]
		f.SetItemCount(len(objs))
		if err := f.WriteAtomic(func(w io.Writer) error {
			return WriteData(w, objs, headerFromFile(f))
		}); err != nil {
			return err
		}
	}
	return nil
}

// SaveSchemaAs renames a single schema file and rewrites it in place,
// rewinding the rename on any write failure (spec §4.6 "save_as").
func (k *Kernel) SaveSchemaAs(oldPath, newFull string) error {
	k.globalMu.Lock()
	defer k.globalMu.Unlock()

	f, ok := k.schemaFiles[oldPath]
	if !ok {
		return &okserr.StateError{Reason: "save_as: schema file not loaded: " + oldPath}
	}
	var classes []*schema.Class
	k.schemaMu.RLock()
	for _, c := range k.classes {
		if cf, ok := c.File().(*file.File); ok && cf == f {
			classes = append(classes, c)
		}
	}
	k.schemaMu.RUnlock()

	if err := f.SaveAs(newFull, func(w io.Writer) error {
		return WriteSchema(w, classes, headerFromFile(f))
	}); err != nil {
		return err
	}
	delete(k.schemaFiles, oldPath)
	k.schemaFiles[newFull] = f
	return nil
}

// SaveDataAs mirrors SaveSchemaAs for a single data file.
func (k *Kernel) SaveDataAs(oldPath, newFull string) error {
	k.globalMu.Lock()
	defer k.globalMu.Unlock()

	f, ok := k.dataFiles[oldPath]
	if !ok {
		return &okserr.StateError{Reason: "save_as: data file not loaded: " + oldPath}
	}
	k.schemaMu.RLock()
	allClasses := make([]*schema.Class, 0, len(k.classes))
	for _, c := range k.classes {
		allClasses = append(allClasses, c)
	}
	k.schemaMu.RUnlock()

	var objs []*object.Object
	k.objectsMu.RLock()
	for _, c := range allClasses {
		for _, handle := range c.Objects() {
			o, ok := handle.(*object.Object)
			if !ok {
				continue
			}
			if of, ok := o.File().(*file.File); ok && of == f {
				objs = append(objs, o)
			}
		}
	}
	k.objectsMu.RUnlock()

	if err := f.SaveAs(newFull, func(w io.Writer) error {
		return WriteData(w, objs, headerFromFile(f))
	}); err != nil {
		return err
	}
	delete(k.dataFiles, oldPath)
	k.dataFiles[newFull] = f
	return nil
}
