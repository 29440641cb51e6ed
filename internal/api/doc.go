// Package api is the client for the remote assignment service.
//
// The Client handles:
//   - Token authentication (HTTP basic auth with the token as user name)
//   - Retries with backoff on transport errors and 5xx responses
//   - Typed errors: every failed call returns a *RemoteError matching ErrRemote
//
// # Basic Usage
//
//	client := api.NewClient(api.Config{URL: "https://api.example.edu", Token: token})
//	if err := client.Authenticate(ctx); err != nil {
//	    return err
//	}
//
//	ids, err := client.Submissions().ListUnder(ctx, model.KindAssignment, asnID)
//	obj, err := client.Submissions().Show(ctx, ids[0])
//
//	_, err = client.Files().Download(ctx, fileID, "/tmp/main.c", nil)
//
// # Endpoints
//
// Collections live at <url>/<collection>/, nested listings at
// <url>/<parent>/<id>/<collection>/ and objects at <url>/<collection>/<id>/.
// List responses are keyed by the collection name, object responses by the
// object's id.
package api
