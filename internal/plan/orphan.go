package plan

import (
	"fmt"

	"github.com/handiism/cog-bulk/internal/model"
)

// Orphan records a leaf that was left out of a plan because an object it
// depends on is missing, usually because fetching that object failed.
type Orphan struct {
	Kind    model.Kind
	Leaf    model.ID
	Missing model.Kind
	Ref     model.ID
	Reason  string
}

func (o Orphan) String() string {
	if o.Reason != "" {
		return fmt.Sprintf("skipped %s %s: %s", o.Kind, o.Leaf, o.Reason)
	}
	if o.Ref.IsNil() {
		return fmt.Sprintf("skipped %s %s: %s reference is missing", o.Kind, o.Leaf, o.Missing)
	}
	return fmt.Sprintf("skipped %s %s: %s %s is unavailable", o.Kind, o.Leaf, o.Missing, o.Ref)
}

func missingRef(kind model.Kind, leaf model.ID, missing model.Kind, ref model.ID) Orphan {
	return Orphan{Kind: kind, Leaf: leaf, Missing: missing, Ref: ref}
}

func badAttr(kind model.Kind, leaf model.ID, err error) Orphan {
	return Orphan{Kind: kind, Leaf: leaf, Reason: err.Error()}
}
