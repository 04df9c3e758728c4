package request

import (
	"errors"
	"fmt"

	"github.com/viant/mediaflow/model"
)

// ErrIllegalStatus is returned when a save would move a request along an edge
// that is not part of the approval graph.
var ErrIllegalStatus = errors.New("request: illegal status change")

// CheckStatusChange verifies from -> to is either no change or a table edge.
func CheckStatusChange(from, to model.Status) error {
	if from == to || model.IsEdge(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalStatus, from, to)
}

// CheckDecision verifies a decision can be appended to request id.
func CheckDecision(id int64, d *model.Decision) error {
	if d == nil {
		return fmt.Errorf("decision is nil")
	}
	if d.RequestID != id {
		return fmt.Errorf("decision belongs to request %d, not %d", d.RequestID, id)
	}
	if !d.Stage.IsValid() || !d.Label.IsValid() {
		return fmt.Errorf("invalid decision %s/%s", d.Stage, d.Label)
	}
	return nil
}
