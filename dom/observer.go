// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dom

import "time"

// VisibilityEntry reports that a target crossed its observer's
// threshold.
type VisibilityEntry struct {
	Target  *Node
	Visible bool

	// Ratio is the fraction of the target's area inside the viewport.
	Ratio float64

	Time time.Time
}

// VisibilityObserver watches targets for viewport intersection changes,
// like IntersectionObserver. Its callback receives a batch of entries,
// one per target whose visibility changed since the last evaluation.
type VisibilityObserver struct {
	document  *Document
	threshold float64
	callback  func([]VisibilityEntry)

	// targets maps each observed node to its last reported visibility.
	targets map[*Node]bool
	order   []*Node
}

// NewVisibilityObserver creates an observer. A target counts as visible
// when it has area and at least threshold of that area lies inside the
// viewport; a zero threshold means any overlap.
func (d *Document) NewVisibilityObserver(threshold float64, callback func([]VisibilityEntry)) *VisibilityObserver {
	observer := &VisibilityObserver{
		document:  d,
		threshold: threshold,
		callback:  callback,
		targets:   make(map[*Node]bool),
	}
	d.visibilityObservers = append(d.visibilityObservers, observer)
	return observer
}

// Observe starts watching node. The callback immediately receives an
// initial entry for it, visible or not. Observing a node twice does
// nothing.
func (o *VisibilityObserver) Observe(node *Node) {
	if _, watched := o.targets[node]; watched {
		return
	}
	entry := o.evaluate(node)
	o.targets[node] = entry.Visible
	o.order = append(o.order, node)
	o.callback([]VisibilityEntry{entry})
}

// Unobserve stops watching node without reporting anything.
func (o *VisibilityObserver) Unobserve(node *Node) {
	if _, watched := o.targets[node]; !watched {
		return
	}
	delete(o.targets, node)
	for i, target := range o.order {
		if target == node {
			o.order = append(o.order[:i:i], o.order[i+1:]...)
			break
		}
	}
}

// Disconnect stops watching every target.
func (o *VisibilityObserver) Disconnect() {
	o.targets = make(map[*Node]bool)
	o.order = nil
}

// Observed returns the number of watched targets.
func (o *VisibilityObserver) Observed() int { return len(o.order) }

func (o *VisibilityObserver) evaluate(node *Node) VisibilityEntry {
	entry := VisibilityEntry{Target: node, Time: o.document.clock.Now()}
	if !node.Connected() {
		return entry
	}
	box := node.BoundingClientRect()
	area := box.Area()
	if area == 0 {
		return entry
	}
	viewport := Rect{Width: o.document.viewport.Width, Height: o.document.viewport.Height}
	entry.Ratio = box.Intersect(viewport).Area() / area
	if o.threshold == 0 {
		entry.Visible = entry.Ratio > 0
	} else {
		entry.Visible = entry.Ratio >= o.threshold
	}
	return entry
}

// update reports every target whose visibility differs from what was
// last reported. State is committed before the callback runs so a
// callback that changes the document sees consistent state.
func (o *VisibilityObserver) update() {
	var changed []VisibilityEntry
	for _, node := range o.order {
		entry := o.evaluate(node)
		if entry.Visible != o.targets[node] {
			o.targets[node] = entry.Visible
			changed = append(changed, entry)
		}
	}
	if len(changed) > 0 {
		o.callback(changed)
	}
}

func (d *Document) updateVisibility() {
	for _, observer := range d.visibilityObservers {
		observer.update()
	}
}

// MutationObserver reports elements inserted under a root, like
// MutationObserver with childList and subtree set.
type MutationObserver struct {
	document *Document
	callback func(added []*Node)
	roots    []*Node
}

// NewMutationObserver creates an observer.
func (d *Document) NewMutationObserver(callback func(added []*Node)) *MutationObserver {
	observer := &MutationObserver{document: d, callback: callback}
	d.mutationObservers = append(d.mutationObservers, observer)
	return observer
}

// Observe watches root's subtree for insertions.
func (o *MutationObserver) Observe(root *Node) {
	o.roots = append(o.roots, root)
}

// Disconnect stops watching.
func (o *MutationObserver) Disconnect() {
	o.roots = nil
}

func (d *Document) notifyMutation(parent *Node, added []*Node) {
	for _, observer := range d.mutationObservers {
		for _, root := range observer.roots {
			if root.Contains(parent) {
				observer.callback(added)
				break
			}
		}
	}
}
