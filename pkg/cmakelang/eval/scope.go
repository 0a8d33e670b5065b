package eval

// ScopeID addresses a Scope within a ScopeArena.
type ScopeID int

// Scope is one link in the variable lookup chain: a mapping from name to
// value string with a parent link. Values are always strings; semicolons
// encode lists (spec §3, "Scope").
type scope struct {
	vars      map[string]string
	parent    ScopeID
	hasParent bool
}

// ScopeArena owns every Scope created during one evaluator run. Scopes are
// created at function-call entry and destroyed (conceptually — simply no
// longer referenced) at return; the arena itself lives for the whole run
// (see DESIGN NOTES, "Scope chain lifetime").
type ScopeArena struct {
	scopes []scope
}

// NewScopeArena returns an arena containing a single root scope, whose id
// is always 0.
func NewScopeArena() *ScopeArena {
	a := &ScopeArena{}
	a.scopes = append(a.scopes, scope{vars: make(map[string]string)})
	return a
}

// Root is the id of the top-level (global) scope.
const Root ScopeID = 0

// NewChild creates a new scope whose parent is the given id and returns its
// id.
func (a *ScopeArena) NewChild(parent ScopeID) ScopeID {
	id := ScopeID(len(a.scopes))
	a.scopes = append(a.scopes, scope{vars: make(map[string]string), parent: parent, hasParent: true})
	return id
}

// Get looks up name starting at `from`, walking up the parent chain until
// the first hit. Returns ("", false) if undefined anywhere in the chain.
func (a *ScopeArena) Get(from ScopeID, name string) (string, bool) {
	id := from
	for {
		if v, ok := a.scopes[id].vars[name]; ok {
			return v, true
		}
		s := &a.scopes[id]
		if !s.hasParent {
			return "", false
		}
		id = s.parent
	}
}

// Set writes name=value into exactly the given scope (no chain traversal).
func (a *ScopeArena) Set(id ScopeID, name, value string) {
	a.scopes[id].vars[name] = value
}

// Unset removes name from exactly the given scope.
func (a *ScopeArena) Unset(id ScopeID, name string) {
	delete(a.scopes[id].vars, name)
}

// SetParentScope writes name=value into id's parent scope (the `set(VAR
// v... PARENT_SCOPE)` form). It is a silent no-op if id has no parent
// (writing PARENT_SCOPE from the root scope), matching the evaluator's
// general policy of silently ignoring ill-formed requests instead of
// aborting the build.
func (a *ScopeArena) SetParentScope(id ScopeID, name, value string) {
	s := &a.scopes[id]
	if !s.hasParent {
		return
	}
	a.Set(s.parent, name, value)
}

// Defined reports whether name resolves anywhere in the chain starting at
// `from`.
func (a *ScopeArena) Defined(from ScopeID, name string) bool {
	_, ok := a.Get(from, name)
	return ok
}
