package fetch

import "github.com/handiism/cog-bulk/internal/model"

// ListAll adapts an unparented listing so it can run as a stage under NilID.
func ListAll(list func() ([]model.ID, error)) ListFunc {
	return func(model.ID) ([]model.ID, error) {
		return list()
	}
}

// RefIn returns a postfilter predicate keeping objects whose foreign key attr
// is one of ids. An empty ids accepts everything; objects with a missing or
// malformed attr are rejected.
func RefIn(attr string, ids ...model.ID) func(model.ID, model.Object) bool {
	if len(ids) == 0 {
		return nil
	}
	set := model.NewIDSet(ids...)
	return func(_ model.ID, obj model.Object) bool {
		ref, err := obj.Ref(attr)
		if err != nil {
			return false
		}
		return set.Has(ref)
	}
}

// OwnerIn keeps objects owned by one of users.
func OwnerIn(users ...model.ID) func(model.ID, model.Object) bool {
	return RefIn(model.AttrOwner, users...)
}

// TestIn keeps objects that reference one of tests.
func TestIn(tests ...model.ID) func(model.ID, model.Object) bool {
	return RefIn(model.AttrTest, tests...)
}
