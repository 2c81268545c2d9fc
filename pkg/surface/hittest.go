package surface

import "github.com/daviddao/playspace/pkg/model"

// HitTest returns the topmost component containing the world point. The
// largest z wins; on equal z the smaller component id wins.
func HitTest(snap model.Snapshot, wx, wy float64) (model.Component, bool) {
	var (
		best  model.Component
		found bool
	)
	for _, c := range snap.Components() {
		if !c.Contains(wx, wy) {
			continue
		}
		if !found || c.Z > best.Z {
			best, found = c, true
		}
	}
	return best, found
}

// Held returns the component pointer of actor is holding. A pointer holds
// at most one component at a time.
func Held(snap model.Snapshot, actor, pointer int64) (model.Component, bool) {
	for _, c := range snap.Components() {
		if c.HeldBy(actor, pointer) {
			return c, true
		}
	}
	return model.Component{}, false
}

// NextComponentID returns one past the largest component id in snap.
func NextComponentID(snap model.Snapshot) int64 {
	ids := snap.IDs()
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1] + 1
}
