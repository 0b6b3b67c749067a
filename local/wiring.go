package local

import (
	"errors"
	"fmt"
)

// wiring is one resolution of the live modules.
type wiring struct {
	// order lists dependencies before their dependents; attachments come last.
	order    []*Module
	deps     map[*Module][]*Module
	problems map[*Module]error
}

func (w wiring) resolvable(m *Module) bool {
	return w.problems[m] == nil
}

// computeWiring binds every requirement to the first installed module of that name,
// then orders the graph. Modules with missing requirements, modules in a cycle and
// everything that depends on them stay unresolved.
func computeWiring(live []*Module) wiring {
	w := wiring{
		deps:     make(map[*Module][]*Module, len(live)),
		problems: make(map[*Module]error),
	}

	manifests := make(map[*Module]Manifest, len(live))
	providers := make(map[string]*Module, len(live))
	var nodes, attachments []*Module
	for _, m := range live {
		mf := m.Manifest()
		manifests[m] = mf
		switch {
		case mf.Name == "":
			w.problems[m] = UnresolvedError{Module: m.String(), Cause: errors.New("module has no name")}
		case mf.IsAttachment():
			attachments = append(attachments, m)
		default:
			nodes = append(nodes, m)
			if _, ok := providers[mf.Name]; !ok {
				providers[mf.Name] = m
			}
		}
	}

	for _, m := range nodes {
		var missing []string
		for _, req := range manifests[m].Requires {
			p, ok := providers[req]
			if !ok {
				missing = append(missing, req)
				continue
			}
			w.deps[m] = append(w.deps[m], p)
		}
		if len(missing) > 0 {
			w.problems[m] = UnresolvedError{Module: manifests[m].Name, Missing: missing}
		}
	}

	const (
		stateNew uint8 = iota
		stateVisiting
		stateDone
	)
	state := make(map[*Module]uint8, len(nodes))
	stack := make([]*Module, 0, len(nodes))
	stackPos := make(map[*Module]int, len(nodes))

	var dfs func(m *Module)
	dfs = func(m *Module) {
		state[m] = stateVisiting
		stackPos[m] = len(stack)
		stack = append(stack, m)

		for _, dep := range w.deps[m] {
			switch state[dep] {
			case stateVisiting:
				cycle := stack[stackPos[dep]:]
				path := make([]string, 0, len(cycle)+1)
				for _, c := range cycle {
					path = append(path, manifests[c].Name)
				}
				path = append(path, manifests[dep].Name)
				cycleErr := CycleDetectedError{Path: path}
				for _, c := range cycle {
					if w.problems[c] == nil {
						w.problems[c] = UnresolvedError{Module: manifests[c].Name, Cause: cycleErr}
					}
				}
			case stateNew:
				dfs(dep)
			}
		}

		stack = stack[:len(stack)-1]
		delete(stackPos, m)
		state[m] = stateDone
		w.order = append(w.order, m)
	}
	for _, m := range nodes {
		if state[m] == stateNew {
			dfs(m)
		}
	}

	for _, m := range w.order {
		if w.problems[m] != nil {
			continue
		}
		for _, dep := range w.deps[m] {
			if w.problems[dep] != nil {
				w.problems[m] = UnresolvedError{
					Module: manifests[m].Name,
					Cause:  fmt.Errorf("requirement %s is unresolved", manifests[dep].Name),
				}
				break
			}
		}
	}

	for _, a := range attachments {
		mf := manifests[a]
		host, ok := providers[mf.AttachmentHost]
		switch {
		case !ok:
			w.problems[a] = UnresolvedError{Module: mf.Name, Missing: []string{mf.AttachmentHost}}
		case w.problems[host] != nil:
			w.problems[a] = UnresolvedError{
				Module: mf.Name,
				Cause:  fmt.Errorf("host %s is unresolved", mf.AttachmentHost),
			}
		default:
			w.deps[a] = []*Module{host}
		}
		w.order = append(w.order, a)
	}
	return w
}
