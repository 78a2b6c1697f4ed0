package diff

import (
	"fmt"

	"github.com/maksimkurb/netstate/src/internal/errors"
	"github.com/maksimkurb/netstate/src/internal/state"
)

// Prepare validates desired against current and returns the normalized
// desired state: defaults applied, canonical form, port membership spelled
// out on the ports, and routes through removed interfaces marked absent.
// current must already be canonical.
func Prepare(current, desired *state.NetworkState, opts Options) (*state.NetworkState, error) {
	if desired == nil {
		return nil, errors.NewInvalidArgument("desired state is empty", nil)
	}
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	enabled := make(map[state.Kind]bool, len(opts.Kinds))
	for _, k := range opts.Kinds {
		enabled[k] = true
	}
	for _, k := range desired.Kinds() {
		if !enabled[k] {
			return nil, errors.NewNotSupported(fmt.Sprintf("entity kind %s is disabled", k), nil)
		}
	}

	want := desired.Clone()
	want.ApplyDesiredDefaults()
	want.Canonicalize()

	if err := checkTypes(current, want); err != nil {
		return nil, err
	}
	if err := resolvePorts(current, want); err != nil {
		return nil, err
	}
	if enabled[state.KindRoutes] {
		removeOrphanRoutes(current, want)
	}

	want.Sort()
	return want, nil
}

func checkTypes(current, want *state.NetworkState) error {
	for _, rec := range want.Interfaces {
		cur := current.Interface(rec.Name)
		switch {
		case cur == nil && !rec.IsAbsent() && rec.Type == "":
			return errors.NewInvalidArgument(
				fmt.Sprintf("interface %s does not exist and has no type to create it with", rec.Name), nil)
		case cur != nil && rec.Type != "" && cur.Type != state.TypeUnknown && cur.Type != rec.Type:
			return errors.NewInvalidArgument(
				fmt.Sprintf("interface %s: cannot change type from %s to %s", rec.Name, cur.Type, rec.Type), nil)
		}
	}
	return nil
}

// resolvePorts moves port membership from controller port lists onto the
// ports' controller field, which is what the ordering and the backends use.
func resolvePorts(current, want *state.NetworkState) error {
	listedBy := make(map[string]string)
	controllers := append([]*state.Interface{}, want.Interfaces...)

	for _, ctrl := range controllers {
		if ctrl.IsAbsent() {
			for _, p := range current.Interfaces {
				if p.ControllerName() != ctrl.Name {
					continue
				}
				rec := ensureRecord(want, p.Name)
				if rec.Controller == nil && !rec.IsAbsent() {
					rec.Controller = state.String("")
				}
			}
			continue
		}

		ports := ctrl.PortNames()
		if ports == nil {
			continue
		}

		inList := make(map[string]bool, len(ports))
		for _, p := range ports {
			inList[p] = true
			if prev, ok := listedBy[p]; ok && prev != ctrl.Name {
				return errors.NewInvalidArgument(
					fmt.Sprintf("interface %s is listed as a port of both %s and %s", p, prev, ctrl.Name), nil)
			}
			listedBy[p] = ctrl.Name

			rec := want.Interface(p)
			switch {
			case rec == nil && current.Interface(p) == nil:
				return errors.NewInvalidArgument(
					fmt.Sprintf("port %s of %s does not exist", p, ctrl.Name), nil)
			case rec == nil:
				rec = ensureRecord(want, p)
			case rec.IsAbsent():
				return errors.NewInvalidArgument(
					fmt.Sprintf("port %s of %s is marked absent", p, ctrl.Name), nil)
			case rec.Controller != nil && *rec.Controller != ctrl.Name:
				return errors.NewInvalidArgument(
					fmt.Sprintf("interface %s names controller %q but is listed as a port of %s",
						p, *rec.Controller, ctrl.Name), nil)
			}
			rec.Controller = state.String(ctrl.Name)
		}

		for _, p := range current.Interfaces {
			if p.ControllerName() != ctrl.Name || inList[p.Name] {
				continue
			}
			rec := ensureRecord(want, p.Name)
			if rec.Controller == nil {
				rec.Controller = state.String("")
			}
		}
	}

	for _, rec := range want.Interfaces {
		c := rec.ControllerName()
		if c == "" {
			continue
		}
		ctrl := want.Interface(c)
		if ctrl != nil && ctrl.PortNames() != nil && listedBy[rec.Name] != c {
			return errors.NewInvalidArgument(
				fmt.Sprintf("interface %s names controller %s, which does not list it as a port", rec.Name, c), nil)
		}
	}
	return nil
}

func ensureRecord(want *state.NetworkState, name string) *state.Interface {
	if rec := want.Interface(name); rec != nil {
		return rec
	}
	rec := &state.Interface{Name: name}
	want.Interfaces = append(want.Interfaces, rec)
	return rec
}

// removeOrphanRoutes marks absent the current routes whose next-hop
// interface is being removed.
func removeOrphanRoutes(current, want *state.NetworkState) {
	for _, rec := range want.Interfaces {
		if !rec.IsAbsent() || current.Interface(rec.Name) == nil {
			continue
		}
		for _, r := range current.Routes {
			if r.NextHopInterface != rec.Name || want.Lookup(state.KindRoutes, r.EntityID()) != nil {
				continue
			}
			gone := state.CloneEntity(r).(*state.Route)
			gone.State = state.StateAbsentValue
			want.Routes = append(want.Routes, gone)
		}
	}
}
