// Package taskpool runs blocking operations on a fixed number of worker
// slots.
//
// A Pool is used inside a session. All submissions of a multi-stage
// operation share the same session so slots are acquired once:
//
//	pool, err := taskpool.New(taskpool.DefaultSize())
//	if err != nil {
//	    return err
//	}
//	err = pool.Session(func(p *taskpool.Pool) error {
//	    h := taskpool.Submit(p, func() (model.Object, error) {
//	        return client.Submissions().Show(ctx, id)
//	    })
//	    obj, err := h.Result()
//	    ...
//	})
//
// The pool never fails a submission itself. Errors returned by an
// operation, and panics raised inside it, surface through Handle.Result.
package taskpool
