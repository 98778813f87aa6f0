package store

import (
	"strings"
)

// Op is a structural patch operation.
type Op string

const (
	OpAdd     Op = "add"
	OpReplace Op = "replace"
	OpRemove  Op = "remove"
)

// Path addresses a node inside the entities mapping:
// [entityID], [entityID, namespace], [entityID, namespace, model] or
// [entityID, namespace, model, field].
type Path []string

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// overlaps reports whether one path is a prefix of the other.
func (p Path) overlaps(other Path) bool {
	n := len(p)
	if len(other) < n {
		n = len(other)
	}
	for i := 0; i < n; i++ {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Patch is one step of an edit script.
type Patch struct {
	Op    Op   `json:"op"`
	Path  Path `json:"path"`
	Value any  `json:"value,omitempty"`
}

// applyPatches returns a new entities mapping with patches applied in order. The input
// mapping is never modified; untouched entities are shared with it.
//
// Patches are applied leniently: removing a node that no longer exists is a no-op and
// writing below a missing parent creates the parent. This is what lets an inverse
// script run against a state that later transactions have changed.
func applyPatches(entities map[string]Entity, patches []Patch) map[string]Entity {
	out := make(map[string]Entity, len(entities))
	for id, e := range entities {
		out[id] = e
	}
	// entities whose Models tree has already been copied in this pass
	owned := map[string]bool{}

	for _, p := range patches {
		if len(p.Path) == 0 {
			continue
		}
		id := p.Path[0]

		if len(p.Path) == 1 {
			switch p.Op {
			case OpRemove:
				delete(out, id)
			default:
				e, _ := p.Value.(Entity)
				e.ID = id
				out[id] = e.Clone()
			}
			owned[id] = true
			continue
		}

		e, exists := out[id]
		if !exists {
			if p.Op == OpRemove {
				continue
			}
			e = Entity{ID: id, Models: Models{}}
			owned[id] = true
		} else if !owned[id] {
			e = e.Clone()
			if e.Models == nil {
				e.Models = Models{}
			}
			owned[id] = true
		}
		setAtPath(e.Models, p.Path[1:], p.Op, p.Value)
		out[id] = e
	}
	return out
}

// setAtPath writes into an owned Models tree. A nil namespace or model is treated
// as missing.
func setAtPath(models Models, path Path, op Op, value any) {
	nsName := path[0]
	if len(path) == 1 {
		if op == OpRemove {
			delete(models, nsName)
			return
		}
		ns, _ := value.(Namespace)
		models[nsName] = ns.clone()
		return
	}

	ns := models[nsName]
	if ns == nil {
		if op == OpRemove {
			return
		}
		ns = Namespace{}
		models[nsName] = ns
	}

	modelName := path[1]
	if len(path) == 2 {
		if op == OpRemove {
			delete(ns, modelName)
			return
		}
		fields, _ := value.(Fields)
		ns[modelName] = fields.clone()
		return
	}

	fields := ns[modelName]
	if fields == nil {
		if op == OpRemove {
			return
		}
		fields = Fields{}
		ns[modelName] = fields
	}
	if op == OpRemove {
		delete(fields, path[2])
		return
	}
	fields[path[2]] = value
}

func patchesOverlap(a, b []Patch) bool {
	for _, pa := range a {
		for _, pb := range b {
			if pa.Path.overlaps(pb.Path) {
				return true
			}
		}
	}
	return false
}
