// Package httpclient builds and sends the HTTP requests of scenario actions.
//
// A [RequestBuilder] turns a [scenario.Action] into an *http.Request, adding
// the Referer, Accept and User-Agent headers the browser would send and
// rejecting header keys or values that contain CR or LF:
//
//	builder := httpclient.NewRequestBuilder("LoadRunner Vegas Slots Test Agent")
//	req, err := builder.Build(ctx, action)
//
// [NewClient] creates a pooled client shared by all virtual users. The
// per-host connection cap should be the per-user limit times the number of
// users:
//
//	client := httpclient.NewClient(30*time.Second, 6*vusers)
//	resp, err := client.Do(req)
package httpclient
