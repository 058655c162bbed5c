// ABOUTME: Argument parsing helpers for the waypoints CLI
// ABOUTME: Splits flags from positionals and parses holder selectors and locations

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wordmann/waypoints/internal/waypoints"
)

// parsedArgs holds the flags and positional arguments of one command.
type parsedArgs struct {
	flags      map[string]string
	positional []string
}

// parseArgs separates "--name value" pairs from positional arguments.
// Flags listed in boolFlags take no value. "--" ends flag parsing.
func parseArgs(args []string, boolFlags ...string) (parsedArgs, error) {
	isBool := make(map[string]bool, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = true
	}

	p := parsedArgs{flags: make(map[string]string)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			p.positional = append(p.positional, args[i+1:]...)
			return p, nil
		case strings.HasPrefix(arg, "--") && len(arg) > 2:
			name, value, hasValue := strings.Cut(arg[2:], "=")
			switch {
			case isBool[name]:
				p.flags[name] = "true"
			case hasValue:
				p.flags[name] = value
			case i+1 < len(args):
				p.flags[name] = args[i+1]
				i++
			default:
				return p, fmt.Errorf("flag --%s needs a value", name)
			}
		default:
			p.positional = append(p.positional, arg)
		}
	}
	return p, nil
}

func (p parsedArgs) flag(name, fallback string) string {
	if v, ok := p.flags[name]; ok {
		return v
	}
	return fallback
}

func (p parsedArgs) bool(name string) bool {
	return p.flags[name] == "true"
}

// holderSelector names a holder on the command line.
type holderSelector struct {
	Type  waypoints.HolderType
	Owner string
}

// parseHolder accepts "global", "group", "group:<key>" and "individual:<owner>".
func parseHolder(s string) (holderSelector, error) {
	typ, owner, _ := strings.Cut(strings.TrimSpace(s), ":")
	sel := holderSelector{Type: waypoints.HolderType(strings.ToLower(typ)), Owner: owner}

	switch sel.Type {
	case waypoints.Global:
		if owner != "" {
			return sel, fmt.Errorf("holder %q: the global holder takes no key", s)
		}
	case waypoints.Group:
	case waypoints.Individual:
		if strings.TrimSpace(owner) == "" {
			return sel, fmt.Errorf("holder %q: use individual:<owner>", s)
		}
	default:
		return sel, fmt.Errorf("holder %q: want global, group[:key] or individual:<owner>", s)
	}
	return sel, nil
}

// parseLocation reads "<world> <x> <y> <z>".
func parseLocation(args []string) (waypoints.Location, error) {
	if len(args) != 4 {
		return waypoints.Location{}, fmt.Errorf("location needs <world> <x> <y> <z>")
	}
	loc := waypoints.Location{World: args[0]}
	coords := []*float64{&loc.X, &loc.Y, &loc.Z}
	for i, dst := range coords {
		v, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return loc, fmt.Errorf("invalid coordinate %q: %w", args[i+1], err)
		}
		*dst = v
	}
	return loc, nil
}
