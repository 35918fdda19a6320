package internal

import (
	"sort"
	"sync"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	"golang.org/x/exp/maps"
)

// CellID is an opaque cell name. Spec.md §6: "the engine does not interpret
// them as coordinates" — unlike the teacher's row/column CellID, this one
// carries no structure at all.
type CellID string

// CellState is the lifecycle stage of a Cell, per spec.md §4.5's state
// machine: Empty -> Parsed -> {Ok(Value) | Err(EvalError)}.
type CellState int

const (
	CellEmpty CellState = iota
	CellParsed
	CellOk
	CellErr
)

// Cell is one named unit of the sheet: its source text, parse result,
// static dependency sets, last computed value, mailbox, and a generation
// counter bumped every time it is re-evaluated.
type Cell struct {
	ID         CellID
	Source     string
	Parsed     Expr
	ParseErr   error
	Deps       StaticDeps
	State      CellState
	Value      Value
	Err        error
	Mailbox    []MailboxEntry
	Generation uint64
}

// Sheet owns every Cell plus the push-edge dependency graph derived from
// their static PushesTo sets, and drives the recomputation scheduler
// (spec.md §4.5). It mirrors the teacher's Spreadsheet (cells map plus
// refersTo/referredFrom adjacency), generalized from "any cell reference
// anywhere in the formula" edges to literal push-target edges.
type Sheet struct {
	mu sync.Mutex

	cells map[CellID]*Cell

	// pushEdges[s] is the set of cells s's formula may push to.
	pushEdges map[CellID]map[CellID]struct{}

	log logr.Logger
}

// NewSheet returns an empty Sheet with logging discarded. Use WithLogger to
// attach a logr.Logger, following the constructor pattern of passing a
// logr.Logger with a logr.Discard() default (as in the pack's
// kubernetes-controller Resolver constructor).
func NewSheet() *Sheet {
	return &Sheet{
		cells:     make(map[CellID]*Cell),
		pushEdges: make(map[CellID]map[CellID]struct{}),
		log:       logr.Discard(),
	}
}

// WithLogger attaches logger to the sheet for observational logging of
// recomputation passes; it never affects evaluation order or results.
func (s *Sheet) WithLogger(logger logr.Logger) *Sheet {
	s.log = logger
	return s
}

func (s *Sheet) cellOrNew(id CellID) *Cell {
	c, ok := s.cells[id]
	if !ok {
		c = &Cell{ID: id, State: CellEmpty}
		s.cells[id] = c
	}
	return c
}

// SetSource parses src, validates that it keeps the push-edge graph acyclic,
// and — if so — commits it and recomputes the affected cells. On a
// CycleError, or a push whose target is not a string literal, the edit is
// rejected and the sheet is left completely unchanged (spec.md §4.5 step 1,
// §7 "rejected atomically").
func (s *Sheet) SetSource(id CellID, src string) ([]CellID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parsed, parseErr := ParseExpr(src)

	var deps StaticDeps
	if parseErr == nil {
		var depsErr error
		deps, depsErr = AnalyzeDeps(parsed)
		if depsErr != nil {
			return nil, depsErr
		}
	}

	// Validate acyclicity against the proposed new edge set before
	// committing anything, so a rejected edit is guaranteed not to have
	// mutated the graph (spec.md invariant: "Any edit that would introduce
	// a cycle is rejected and leaves the sheet unchanged").
	if parseErr == nil {
		if cyc := s.wouldCycle(id, deps.PushesTo); cyc != nil {
			return nil, &CycleError{Cycle: cyc}
		}
	}

	oldTargets := maps.Keys(s.pushEdges[id])

	cell := s.cellOrNew(id)
	cell.Source = src
	cell.Parsed = parsed
	cell.ParseErr = parseErr
	if parseErr != nil {
		cell.State = CellErr
		cell.Err = parseErr
		cell.Deps = StaticDeps{}
	} else {
		cell.State = CellParsed
		cell.Deps = deps
	}
	s.setPushEdges(id, deps.PushesTo)

	s.log.V(1).Info("set_source", "cell", string(id), "pushes_to", deps.PushesTo)

	changed := s.recompute(id, oldTargets...)
	return changed, nil
}

// Delete removes a cell entirely: its source, value, and its outgoing push
// edges. Push edges from other cells into id stay in the graph. Downstream cells recompute as if the cell had always been
// empty (an empty cell's read()/references behave per the rest of this
// package's "missing cell" handling).
func (s *Sheet) Delete(id CellID) ([]CellID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cells[id]; !ok {
		return nil, nil
	}
	oldTargets := maps.Keys(s.pushEdges[id])
	s.setPushEdges(id, nil)
	delete(s.cells, id)
	delete(s.pushEdges, id)

	changed := s.recompute(id, oldTargets...)
	return changed, nil
}

// Get returns the last computed value or error of id, and false if the cell
// does not exist.
func (s *Sheet) Get(id CellID) (Value, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[id]
	if !ok {
		return nil, nil, false
	}
	return c.Value, c.Err, true
}

// Source returns the last-set source text of id, and false if the cell does
// not exist. Used by hosts that persist cell sources (SPEC_FULL.md §6's
// load/save), never by the engine itself.
func (s *Sheet) Source(id CellID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cells[id]
	if !ok {
		return "", false
	}
	return c.Source, true
}

// ListCells returns every known cell id, ascending lexicographic order for
// determinism (spec.md §6).
func (s *Sheet) ListCells() []CellID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := maps.Keys(s.cells)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// setPushEdges replaces the outgoing push edges from source with targets.
func (s *Sheet) setPushEdges(source CellID, targets []CellID) {
	maps.Clear(s.pushEdges[source])

	if len(targets) == 0 {
		return
	}
	if s.pushEdges[source] == nil {
		s.pushEdges[source] = make(map[CellID]struct{})
	}
	for _, t := range targets {
		s.pushEdges[source][t] = struct{}{}
	}
}

// wouldCycle reports the cycle (if any) introduced by giving source the
// push edges in targets, without mutating the graph.
func (s *Sheet) wouldCycle(source CellID, targets []CellID) []CellID {
	trial := make(map[CellID]map[CellID]struct{}, len(s.pushEdges)+1)
	for k, v := range s.pushEdges {
		trial[k] = v
	}
	edgeSet := make(map[CellID]struct{}, len(targets))
	for _, t := range targets {
		edgeSet[t] = struct{}{}
	}
	trial[source] = edgeSet

	return detectCycle(trial)
}

// color marks used by the WHITE/GRAY/BLACK DFS of spec.md §4.6.
type color int

const (
	white color = iota
	gray
	black
)

// detectCycle performs the DFS coloring described in spec.md §4.6 over
// edges, returning nil if the graph is acyclic, or the ordered list of
// CellIDs on the cycle (from the offending node back to its first
// occurrence) otherwise.
func detectCycle(edges map[CellID]map[CellID]struct{}) []CellID {
	colors := make(map[CellID]color)
	var stack []CellID
	var cycle []CellID

	nodes := maps.Keys(edges)
	for _, targets := range edges {
		for t := range targets {
			nodes = append(nodes, t)
		}
	}
	nodes = lo.Uniq(nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] }) // deterministic visit order

	var visit func(n CellID) bool
	visit = func(n CellID) bool {
		colors[n] = gray
		stack = append(stack, n)

		targets := maps.Keys(edges[n])
		sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
		for _, m := range targets {
			switch colors[m] {
			case gray:
				// found the cycle: walk back from n to the first occurrence of m
				start := 0
				for i, s := range stack {
					if s == m {
						start = i
						break
					}
				}
				cycle = append([]CellID{}, stack[start:]...)
				cycle = append(cycle, m)
				return true
			case white:
				if visit(m) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[n] = black
		return false
	}

	for _, n := range nodes {
		if colors[n] == white {
			if visit(n) {
				return cycle
			}
		}
	}
	return nil
}

// recompute runs the six-step recomputation algorithm of spec.md §4.5,
// treating changed as the cell that was just edited (or deleted), and
// returns the ids whose value or error state actually changed. extraSeeds
// are cells that used to receive pushes from changed before this edit —
// seeding the dirty set with them ensures their mailboxes get cleared of
// now-stale entries even if changed no longer pushes to them (spec.md
// §4.5 step 2).
func (s *Sheet) recompute(changed CellID, extraSeeds ...CellID) []CellID {
	dirty := s.dirtySet(changed, extraSeeds)

	for id := range dirty {
		if c, ok := s.cells[id]; ok {
			c.Mailbox = clearStalePushes(c.Mailbox, dirty)
		}
	}

	order := s.dirtyTopoOrder(dirty)

	var changedIDs []CellID
	for _, id := range order {
		cell, ok := s.cells[id]
		if !ok {
			continue
		}
		prevVal, prevErr := cell.Value, cell.Err
		s.evalOne(cell, dirty)
		cell.Generation++
		if !sameOutcome(prevVal, prevErr, cell.Value, cell.Err) {
			changedIDs = append(changedIDs, id)
		}
	}

	sort.Slice(changedIDs, func(i, j int) bool { return changedIDs[i] < changedIDs[j] })
	s.log.V(1).Info("recompute", "trigger", string(changed), "dirty", len(dirty), "changed", len(changedIDs))
	return changedIDs
}

// clearStalePushes drops mailbox entries sourced from a cell that is
// itself in dirty, since that sender is about to re-run this pass and will
// re-deliver any push it still makes. Entries sourced from a cell outside
// dirty must survive: that sender won't re-execute this pass, so its
// earlier push is the only copy there is (e.g. S4/S5: editing one of two
// senders to a shared target must not erase the other sender's push).
func clearStalePushes(entries []MailboxEntry, dirty map[CellID]struct{}) []MailboxEntry {
	var out []MailboxEntry
	for _, e := range entries {
		if _, stale := dirty[e.Source]; stale {
			continue
		}
		out = append(out, e)
	}
	return out
}

// dirtySet computes the set described in spec.md §4.5 step 2: changed plus
// the transitive closure of push-edge reachability from it (over the
// already-updated edge set), plus extraSeeds — the cell's push targets
// from *before* this edit, which may no longer be reachable under the new
// edges but still need their mailboxes cleared of now-stale entries.
func (s *Sheet) dirtySet(changed CellID, extraSeeds []CellID) map[CellID]struct{} {
	dirty := map[CellID]struct{}{changed: {}}
	queue := []CellID{changed}

	enqueue := func(id CellID) {
		if _, ok := dirty[id]; !ok {
			dirty[id] = struct{}{}
			queue = append(queue, id)
		}
	}
	for _, id := range extraSeeds {
		enqueue(id)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for target := range s.pushEdges[cur] {
			enqueue(target)
		}
	}
	return dirty
}

// dirtyTopoOrder topologically sorts dirty using the push-edge graph
// restricted to it, ties broken by ascending lexicographic CellID (spec.md
// §4.5 step 4). Cells outside the restricted graph (no incoming or outgoing
// edges among the dirty set) still appear, ordered by the same tiebreak.
// Roots and targets are visited in descending order so that the final
// reversal puts the smaller CellID first.
func (s *Sheet) dirtyTopoOrder(dirty map[CellID]struct{}) []CellID {
	ids := maps.Keys(dirty)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	colors := make(map[CellID]color, len(ids))
	var order []CellID

	var visit func(id CellID)
	visit = func(id CellID) {
		colors[id] = gray
		targets := maps.Keys(s.pushEdges[id])
		sort.Slice(targets, func(i, j int) bool { return targets[i] > targets[j] })
		for _, t := range targets {
			if _, inDirty := dirty[t]; !inDirty {
				continue
			}
			if colors[t] == white {
				visit(t)
			}
		}
		colors[id] = black
		order = append(order, id)
	}

	for i := len(ids) - 1; i >= 0; i-- {
		if colors[ids[i]] == white {
			visit(ids[i])
		}
	}

	// visit appends a node only after all of its dirty push-targets have
	// been appended (dependency-first for DFS-postorder); reverse to get
	// senders before receivers.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// evalOne evaluates one cell within a pass and applies its pending pushes
// to targets that are part of dirty, per spec.md §4.5 step 5.
func (s *Sheet) evalOne(cell *Cell, dirty map[CellID]struct{}) {
	if cell.ParseErr != nil {
		cell.State = CellErr
		cell.Err = cell.ParseErr
		cell.Value = nil
		return
	}

	ctx := NewEvalContext(cell.ID, sortedMailbox(cell.Mailbox))
	val, err := Eval(cell.Parsed, nil, ctx)
	if err != nil {
		cell.State = CellErr
		cell.Err = err
		cell.Value = nil
		return
	}

	cell.State = CellOk
	cell.Value = val
	cell.Err = nil

	for _, p := range ctx.Pushes {
		if _, ok := dirty[p.Target]; !ok {
			// the static analysis in AnalyzeDeps said this cell could only
			// push to cells already in pushEdges[cell.ID], all of which are
			// in dirty by construction; reaching here means the dynamic
			// push didn't match the static set.
			cell.State = CellErr
			cell.Err = newEvalError(ErrStalePush, "push to %q observed outside its static target set", p.Target)
			continue
		}
		target, ok := s.cells[p.Target]
		if !ok {
			cell.State = CellErr
			cell.Err = newEvalError(ErrPushToMissingCell, "push to missing cell %q", p.Target)
			continue
		}
		target.Mailbox = append(target.Mailbox, MailboxEntry{Source: cell.ID, Seq: p.Seq, Value: p.Value})
	}
}

func sameOutcome(prevVal Value, prevErr error, newVal Value, newErr error) bool {
	if (prevErr == nil) != (newErr == nil) {
		return false
	}
	if prevErr != nil {
		return prevErr.Error() == newErr.Error()
	}
	eq, err := valuesEqual(prevVal, newVal)
	return err == nil && eq
}

// sortedMailbox returns a cell's mailbox entries ordered per spec.md §3's
// read() guarantee: ascending lexicographic source CellID, then ascending
// Seq within a source.
func sortedMailbox(entries []MailboxEntry) []MailboxEntry {
	out := append([]MailboxEntry{}, entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}
