// Package impl implements the Permission Resolution Engine: the Path
// Evaluator, Owner Resolver, Delay Resolver, Ownership Graph and
// Traversal Engine described in the permission resolution
// specification, wired together by Engine.
package impl

import (
	"strconv"
	"strings"

	"github.com/onchainwatch/permresolve/internal/permission"
)

// rootKind tags how a parsed path's root re-roots evaluation.
type rootKind int

const (
	rootSelf rootKind = iota
	rootField
	rootAddress
)

type pathRoot struct {
	kind  rootKind
	field string             // rootField
	addr  permission.Address // rootAddress
}

type stepKind int

const (
	stepField stepKind = iota
	stepKey
)

type pathStep struct {
	kind stepKind
	text string
}

type parsedPath struct {
	raw   string
	root  pathRoot
	steps []pathStep
}

// parsePath parses a path expression per spec.md §4.1's grammar:
//
//	path         := contract-ref ( '.' segment ( '.' segment | '[' key ']' )* )?
//	contract-ref := '$self' | '@' field-name | qualified-address
//	segment      := identifier
//	key          := qualified-address | identifier | digits
func parsePath(path string) (parsedPath, error) {
	if path == "" {
		return parsedPath{}, &permission.ErrMalformedPath{Path: path, Reason: "empty path"}
	}

	rootText, rest := splitRoot(path)
	root, err := parseRoot(path, rootText)
	if err != nil {
		return parsedPath{}, err
	}

	steps, err := parseSteps(path, rest)
	if err != nil {
		return parsedPath{}, err
	}

	return parsedPath{raw: path, root: root, steps: steps}, nil
}

// splitRoot splits off the leading contract-ref, up to the first '.'
// or '[' that isn't part of it, returning the root text and the
// unparsed remainder (which still carries its leading '.' or '[').
func splitRoot(path string) (root, rest string) {
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '.', '[':
			return path[:i], path[i:]
		}
	}
	return path, ""
}

func parseRoot(fullPath, rootText string) (pathRoot, error) {
	switch {
	case rootText == "$self":
		return pathRoot{kind: rootSelf}, nil
	case strings.HasPrefix(rootText, "@"):
		field := rootText[1:]
		if field == "" {
			return pathRoot{}, &permission.ErrMalformedPath{Path: fullPath, Reason: "empty @field root"}
		}
		return pathRoot{kind: rootField, field: field}, nil
	default:
		addr, ok := permission.ParseQualifiedAddress(rootText)
		if !ok {
			return pathRoot{}, &permission.ErrMalformedPath{
				Path:   fullPath,
				Reason: "root is neither $self, @field nor a qualified address",
			}
		}
		return pathRoot{kind: rootAddress, addr: addr}, nil
	}
}

// parseSteps parses the suffix after the contract-ref into a flat
// sequence of field-segment and bracket-key steps.
func parseSteps(fullPath, rest string) ([]pathStep, error) {
	var steps []pathStep
	i := 0
	for i < len(rest) {
		switch rest[i] {
		case '.':
			i++
			start := i
			for i < len(rest) && rest[i] != '.' && rest[i] != '[' {
				i++
			}
			name := rest[start:i]
			if name == "" {
				return nil, &permission.ErrMalformedPath{Path: fullPath, Reason: "empty segment after '.'"}
			}
			steps = append(steps, pathStep{kind: stepField, text: name})
		case '[':
			i++
			start := i
			for i < len(rest) && rest[i] != ']' {
				i++
			}
			if i >= len(rest) {
				return nil, &permission.ErrMalformedPath{Path: fullPath, Reason: "unterminated '['"}
			}
			key := rest[start:i]
			if key == "" {
				return nil, &permission.ErrMalformedPath{Path: fullPath, Reason: "empty key in '[]'"}
			}
			steps = append(steps, pathStep{kind: stepKey, text: key})
			i++ // consume ']'
		default:
			return nil, &permission.ErrMalformedPath{Path: fullPath, Reason: "unexpected character"}
		}
	}
	return steps, nil
}

// Evaluator resolves path expressions against a fixed snapshot of the
// Discovered Store (spec §4.1).
type Evaluator struct {
	snapshot permission.DiscoveredSnapshot
}

// NewEvaluator builds an Evaluator bound to a snapshot. Results hold no
// references into the snapshot past return (spec §3 "Ownership model").
func NewEvaluator(snapshot permission.DiscoveredSnapshot) *Evaluator {
	return &Evaluator{snapshot: snapshot}
}

// PathResult is the output of evaluating a single path expression.
type PathResult struct {
	Addresses  []permission.Address
	Structured *permission.FieldValue
	Err        error
}

// Evaluate resolves a path expression rooted at selfContract, the
// contract on which the enclosing function is defined (spec §4.1).
func (e *Evaluator) Evaluate(selfContract permission.Address, path string) PathResult {
	p, err := parsePath(path)
	if err != nil {
		return PathResult{Err: err}
	}

	rootAddr, err := e.resolveRoot(selfContract, p)
	if err != nil {
		return PathResult{Err: err}
	}

	entry, ok := e.snapshot.Lookup(rootAddr)
	if !ok {
		return PathResult{Err: &permission.ErrUnknownContract{Address: rootAddr.String()}}
	}

	if len(p.steps) == 0 {
		// "A path with only a contract-ref yields that contract's address."
		return PathResult{Addresses: []permission.Address{rootAddr}}
	}

	current, err := firstFieldLookup(entry, p)
	if err != nil {
		return PathResult{Err: err}
	}

	for _, step := range p.steps[1:] {
		if current.Kind == permission.FieldValueAddress {
			// spec §4.1 rule 3: addresses are never auto-followed
			// during descent; only an explicit @field root re-roots.
			return PathResult{}
		}
		current, err = applyStep(p.raw, entry.Address.String(), current, step)
		if err != nil {
			return PathResult{Err: err}
		}
	}

	return terminal(current)
}

func (e *Evaluator) resolveRoot(selfContract permission.Address, p parsedPath) (permission.Address, error) {
	switch p.root.kind {
	case rootSelf:
		return selfContract, nil
	case rootAddress:
		return p.root.addr, nil
	case rootField:
		selfEntry, ok := e.snapshot.Lookup(selfContract)
		if !ok {
			return permission.Address{}, &permission.ErrUnknownContract{Address: selfContract.String()}
		}
		fv, ok := selfEntry.FieldByName(p.root.field)
		if !ok {
			return permission.Address{}, &permission.ErrUnknownField{
				Contract: selfContract.String(),
				Field:    p.root.field,
			}
		}
		if fv.Kind != permission.FieldValueAddress {
			return permission.Address{}, &permission.ErrTypeMismatch{
				Path:     p.raw,
				Expected: string(permission.FieldValueAddress),
				Got:      fv.Kind,
			}
		}
		return fv.Address, nil
	default:
		return permission.Address{}, &permission.ErrMalformedPath{Path: p.raw, Reason: "unknown root kind"}
	}
}

// firstFieldLookup applies the mandatory first ".segment" step, which
// is always a field lookup on the contract entry itself rather than on
// a FieldValue (spec §4.1 rule 2: "values.<name>" else the Fields
// sequence, by name).
func firstFieldLookup(entry permission.DiscoveredEntry, p parsedPath) (permission.FieldValue, error) {
	first := p.steps[0]
	if first.kind != stepField {
		return permission.FieldValue{}, &permission.ErrMalformedPath{
			Path:   p.raw,
			Reason: "path must begin with a '.segment' after its root",
		}
	}
	fv, ok := entry.FieldByName(first.text)
	if !ok {
		return permission.FieldValue{}, &permission.ErrUnknownField{
			Contract: entry.Address.String(),
			Field:    first.text,
		}
	}
	return fv, nil
}

// applyStep advances current by one step: a field lookup into an
// object, or a bracket-key lookup into an array or object.
func applyStep(rawPath, contract string, current permission.FieldValue, step pathStep) (permission.FieldValue, error) {
	switch step.kind {
	case stepField:
		v, ok := current.Get(step.text)
		if !ok {
			return permission.FieldValue{}, &permission.ErrUnknownField{Contract: contract, Field: step.text}
		}
		return v, nil
	case stepKey:
		return applyKey(rawPath, contract, current, step.text)
	default:
		return permission.FieldValue{}, &permission.ErrMalformedPath{Path: rawPath, Reason: "unknown step kind"}
	}
}

func applyKey(rawPath, contract string, current permission.FieldValue, key string) (permission.FieldValue, error) {
	switch current.Kind {
	case permission.FieldValueArray:
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return permission.FieldValue{}, &permission.ErrIndexOutOfRange{Path: rawPath, Index: idx, Len: len(current.Array)}
		}
		if idx >= len(current.Array) {
			return permission.FieldValue{}, &permission.ErrIndexOutOfRange{Path: rawPath, Index: idx, Len: len(current.Array)}
		}
		return current.Array[idx], nil
	case permission.FieldValueObject:
		// Literal key first.
		if v, ok := current.Get(key); ok {
			return v, nil
		}
		// Role-table fallback: case-insensitive match against member
		// (role) names.
		for _, e := range current.Object {
			if strings.EqualFold(e.Name, key) {
				return e.Value, nil
			}
		}
		return permission.FieldValue{}, &permission.ErrUnknownField{Contract: contract, Field: key}
	default:
		return permission.FieldValue{}, &permission.ErrTypeMismatch{
			Path:     rawPath,
			Expected: "array or object",
			Got:      current.Kind,
		}
	}
}

// terminal implements spec §4.1 point 4's terminal-node rules.
func terminal(v permission.FieldValue) PathResult {
	switch v.Kind {
	case permission.FieldValueAddress:
		return PathResult{Addresses: []permission.Address{v.Address}}
	case permission.FieldValueArray:
		return PathResult{Addresses: collectAddresses(v)}
	case permission.FieldValueObject:
		structured := v
		return PathResult{Addresses: collectAddresses(v), Structured: &structured}
	default:
		structured := v
		return PathResult{Structured: &structured}
	}
}

// collectAddresses recursively collects every address leaf inside an
// array or object FieldValue, in document order, with duplicates
// preserved (the caller deduplicates; spec §4.1 "Result").
func collectAddresses(v permission.FieldValue) []permission.Address {
	var out []permission.Address
	var walk func(permission.FieldValue)
	walk = func(v permission.FieldValue) {
		switch v.Kind {
		case permission.FieldValueAddress:
			out = append(out, v.Address)
		case permission.FieldValueArray:
			for _, e := range v.Array {
				walk(e)
			}
		case permission.FieldValueObject:
			for _, e := range v.Object {
				walk(e.Value)
			}
		}
	}
	walk(v)
	return out
}
