// Package fetch joins one level of the resource hierarchy to the next.
//
// A Stage pairs a list operation (parent id to child ids) with a show
// operation (child id to object). Fetch runs both as mapper batches on a
// shared task pool with two filter points:
//
//   - Prefilter works on ids only and avoids fetching objects that can
//     already be excluded.
//   - Postfilter sees the fetched attributes, e.g. "owner is one of X".
//
// Stages are chained by feeding Result.ObjectIDs into the next call:
//
//	asn, err := fetch.Fetch(pool, []model.ID{model.NilID}, assignments)
//	subs, err := fetch.Fetch(pool, asn.ObjectIDs(), submissions)
//	files, err := fetch.Fetch(pool, subs.ObjectIDs(), files)
//
// An allow-list entry that is absent from the listed (pre) or fetched (post)
// set fails the whole call with ErrNotFound. Remote failures never do; they
// are recorded in ListFailures and ShowFailures.
package fetch
