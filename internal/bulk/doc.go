// Package bulk provides the bulk operations run against the remote service:
// downloading submission files, tabulating run results and deleting objects.
//
// # Runner
//
// Each operation runs inside one task pool session, walks the resource
// hierarchy stage by stage and only then touches the local side:
//
//  1. Resolve usernames to user ids
//  2. Fetch Assignments, then the children selected at each level
//  3. Fetch the owners of the surviving objects
//  4. Plan destination paths, or join the results table
//  5. Download the planned files, or delete the selected objects
//
// # Basic Usage
//
//	runner := bulk.NewRunner(client, settings, log, func(event bulk.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	report, err := runner.DownloadSubmissions(ctx, bulk.DownloadRequest{
//	    Dest:        "./submissions",
//	    Assignments: []model.ID{asn},
//	})
//
// # Failures
//
// A failing list, show, download or delete call never aborts its siblings;
// it is recorded in the report's Failures and, for downloads and tables,
// every leaf depending on it is reported as a plan.Orphan. Only an
// allow-list naming an unknown id or username, or invalid settings, fail an
// operation as a whole.
//
// # Retry Logic
//
// Failed file downloads are retried with exponential backoff starting at
// settings.DownloadRetryCooldown seconds and growing by
// settings.DownloadRetryExponent, up to settings.DownloadMaxRetries attempts.
// Finished files are recorded in a checkpoint store beneath the download root
// so an interrupted run resumes where it stopped.
package bulk
