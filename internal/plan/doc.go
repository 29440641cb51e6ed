// Package plan turns joined object maps into concrete outputs.
//
// Download derives a destination path for every fetched file:
//
//	root/asn_Homework1_5cbd6d3cfa01/usr_alice/sub_151016_130000_0a1b2c3d4e5f/src/main.c
//
// Results joins every run with its submission, assignment, test and owner
// into table rows that can be sorted by any displayed column and rendered
// with Render.
//
// Both joins are pure and in-memory. A leaf whose ancestor is missing is
// skipped and reported as an Orphan rather than failing the whole plan.
package plan
