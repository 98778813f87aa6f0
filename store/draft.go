package store

import (
	"reflect"
	"sort"
)

// Draft is the mutable view handed to an EditFunc. Reads see the draft's own writes;
// the first write to an entity copies that entity, so the snapshot the draft was taken
// from is never modified.
type Draft struct {
	base     map[string]Entity
	entities map[string]Entity
	owned    map[string]bool
	touched  map[string]struct{}
}

// EditFunc applies speculative edits to a draft.
type EditFunc func(d *Draft)

func newDraft(base map[string]Entity) *Draft {
	return &Draft{
		base:    base,
		owned:   map[string]bool{},
		touched: map[string]struct{}{},
	}
}

func (d *Draft) current() map[string]Entity {
	if d.entities != nil {
		return d.entities
	}
	return d.base
}

// Entity returns the draft's current value for id. The result must not be mutated.
func (d *Draft) Entity(id string) (Entity, bool) {
	e, ok := d.current()[id]
	return e, ok
}

// Field returns the draft's current value for a single field.
func (d *Draft) Field(id, namespace, model, field string) (any, bool) {
	e, ok := d.Entity(id)
	if !ok {
		return nil, false
	}
	return e.Field(namespace, model, field)
}

// SetField writes one field, creating the entity, namespace and model when missing.
func (d *Draft) SetField(id, namespace, model, field string, value any) {
	fields := d.model(id, namespace, model)
	fields[field] = value
}

// DeleteField removes one field. Missing parents make it a no-op.
func (d *Draft) DeleteField(id, namespace, model, field string) {
	if _, ok := d.Field(id, namespace, model, field); !ok {
		return
	}
	fields := d.model(id, namespace, model)
	delete(fields, field)
}

// SetModel replaces a whole model record.
func (d *Draft) SetModel(id, namespace, model string, fields Fields) {
	e := d.own(id)
	ns := e.Models[namespace]
	if ns == nil {
		ns = Namespace{}
		e.Models[namespace] = ns
	}
	ns[model] = fields.clone()
}

// DeleteModel removes a model record from an entity.
func (d *Draft) DeleteModel(id, namespace, model string) {
	e, ok := d.Entity(id)
	if !ok {
		return
	}
	if _, ok := e.Model(namespace, model); !ok {
		return
	}
	delete(d.own(id).Models[namespace], model)
}

// PutEntity replaces an entity wholesale.
func (d *Draft) PutEntity(e Entity) {
	d.write()
	e = e.Clone()
	if e.Models == nil {
		e.Models = Models{}
	}
	d.entities[e.ID] = e
	d.owned[e.ID] = true
	d.touched[e.ID] = struct{}{}
}

// DeleteEntity removes an entity from the draft.
func (d *Draft) DeleteEntity(id string) {
	if _, ok := d.Entity(id); !ok {
		return
	}
	d.write()
	delete(d.entities, id)
	d.touched[id] = struct{}{}
}

// Mutate hands fn a private, mutable copy of the entity's models, creating the entity
// when missing.
func (d *Draft) Mutate(id string, fn func(models Models)) {
	fn(d.own(id).Models)
}

func (d *Draft) write() {
	if d.entities != nil {
		return
	}
	d.entities = make(map[string]Entity, len(d.base)+1)
	for id, e := range d.base {
		d.entities[id] = e
	}
}

// own returns an entity whose Models tree belongs to the draft.
func (d *Draft) own(id string) Entity {
	d.write()
	d.touched[id] = struct{}{}
	e, ok := d.entities[id]
	if ok && d.owned[id] {
		return e
	}
	if ok {
		e = e.Clone()
	} else {
		e = Entity{ID: id}
	}
	if e.Models == nil {
		e.Models = Models{}
	}
	d.entities[id] = e
	d.owned[id] = true
	return e
}

func (d *Draft) model(id, namespace, model string) Fields {
	e := d.own(id)
	ns := e.Models[namespace]
	if ns == nil {
		ns = Namespace{}
		e.Models[namespace] = ns
	}
	fields := ns[model]
	if fields == nil {
		fields = Fields{}
		ns[model] = fields
	}
	return fields
}

// finish diffs every touched entity against the base and returns the resulting
// entities mapping with the forward and inverse scripts. The inverse script is the
// reverse of the per-step inverses, so it undoes the forward script step by step.
func (d *Draft) finish() (map[string]Entity, []Patch, []Patch) {
	if d.entities == nil {
		return d.base, nil, nil
	}

	ids := make([]string, 0, len(d.touched))
	for id := range d.touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var patches, inverse []Patch
	for _, id := range ids {
		before, hadBefore := d.base[id]
		after, hasAfter := d.entities[id]
		fwd, inv := diffEntity(id, before, hadBefore, after, hasAfter)
		patches = append(patches, fwd...)
		inverse = append(inverse, inv...)
	}
	reversePatches(inverse)

	// entities touched without a structural change keep sharing the base value
	for _, id := range ids {
		if before, ok := d.base[id]; ok {
			if after, ok := d.entities[id]; ok && reflect.DeepEqual(before.Models, after.Models) {
				d.entities[id] = before
			}
		}
	}
	return d.entities, patches, inverse
}

func diffEntity(id string, before Entity, hadBefore bool, after Entity, hasAfter bool) ([]Patch, []Patch) {
	path := Path{id}
	switch {
	case !hadBefore && !hasAfter:
		return nil, nil
	case !hadBefore:
		return []Patch{{Op: OpAdd, Path: path, Value: after.Clone()}},
			[]Patch{{Op: OpRemove, Path: path}}
	case !hasAfter:
		return []Patch{{Op: OpRemove, Path: path}},
			[]Patch{{Op: OpAdd, Path: path, Value: before.Clone()}}
	}

	var fwd, inv []Patch
	for _, name := range unionKeys(before.Models, after.Models) {
		nsPath := Path{id, name}
		oldNS, hadNS := before.Models[name]
		newNS, hasNS := after.Models[name]
		switch {
		case !hadNS:
			fwd = append(fwd, Patch{Op: OpAdd, Path: nsPath, Value: newNS.clone()})
			inv = append(inv, Patch{Op: OpRemove, Path: nsPath})
		case !hasNS:
			fwd = append(fwd, Patch{Op: OpRemove, Path: nsPath})
			inv = append(inv, Patch{Op: OpAdd, Path: nsPath, Value: oldNS.clone()})
		case (oldNS == nil) != (newNS == nil):
			// a nil namespace is a value of its own and is restored as such
			fwd = append(fwd, Patch{Op: OpReplace, Path: nsPath, Value: newNS.clone()})
			inv = append(inv, Patch{Op: OpReplace, Path: nsPath, Value: oldNS.clone()})
		default:
			f, i := diffNamespace(nsPath, oldNS, newNS)
			fwd = append(fwd, f...)
			inv = append(inv, i...)
		}
	}
	return fwd, inv
}

func diffNamespace(prefix Path, before, after Namespace) ([]Patch, []Patch) {
	var fwd, inv []Patch
	for _, name := range unionKeys(before, after) {
		path := appendPath(prefix, name)
		oldFields, had := before[name]
		newFields, has := after[name]
		switch {
		case !had:
			fwd = append(fwd, Patch{Op: OpAdd, Path: path, Value: newFields.clone()})
			inv = append(inv, Patch{Op: OpRemove, Path: path})
		case !has:
			fwd = append(fwd, Patch{Op: OpRemove, Path: path})
			inv = append(inv, Patch{Op: OpAdd, Path: path, Value: oldFields.clone()})
		case (oldFields == nil) != (newFields == nil):
			fwd = append(fwd, Patch{Op: OpReplace, Path: path, Value: newFields.clone()})
			inv = append(inv, Patch{Op: OpReplace, Path: path, Value: oldFields.clone()})
		default:
			f, i := diffFields(path, oldFields, newFields)
			fwd = append(fwd, f...)
			inv = append(inv, i...)
		}
	}
	return fwd, inv
}

func diffFields(prefix Path, before, after Fields) ([]Patch, []Patch) {
	var fwd, inv []Patch
	for _, name := range unionKeys(before, after) {
		path := appendPath(prefix, name)
		oldValue, had := before[name]
		newValue, has := after[name]
		switch {
		case !had:
			fwd = append(fwd, Patch{Op: OpAdd, Path: path, Value: newValue})
			inv = append(inv, Patch{Op: OpRemove, Path: path})
		case !has:
			fwd = append(fwd, Patch{Op: OpRemove, Path: path})
			inv = append(inv, Patch{Op: OpAdd, Path: path, Value: oldValue})
		case !reflect.DeepEqual(oldValue, newValue):
			fwd = append(fwd, Patch{Op: OpReplace, Path: path, Value: newValue})
			inv = append(inv, Patch{Op: OpReplace, Path: path, Value: oldValue})
		}
	}
	return fwd, inv
}

func appendPath(prefix Path, name string) Path {
	out := make(Path, len(prefix), len(prefix)+1)
	copy(out, prefix)
	return append(out, name)
}

func unionKeys[V any](a, b map[string]V) []string {
	keys := make([]string, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func reversePatches(p []Patch) {
	for i, j := 0, len(p)-1; i < j; i, j = i+1, j-1 {
		p[i], p[j] = p[j], p[i]
	}
}
