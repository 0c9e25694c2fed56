// Package fake provides fake HTTP responses, a mock transport and file-backed fixtures
// for testing API clients without a network.
//
// # Features
//
//   - Response: immutable status, headers and body; default status 200
//   - Body variants picked from the constructor input: JSONBody for structured values,
//     StringBody for strings and byte slices
//   - MockTransport: URL pattern routes and FIFO queues, request recording and Sent helpers
//   - Fixture: record a live response once to dir/name.json, replay it afterwards
//
// # Quick Start
//
//	mock := fake.NewMockTransport().
//	    On("*/oauth/token", fake.New(map[string]any{"access_token": "abc"})).
//	    On("*/user", fake.New(`{"id":1}`, fake.WithStatus(http.StatusOK)))
//
//	client := mock.Client()
//	resp, err := client.Get("https://api.example.com/user")
//
// Fake responses, MockTransport and Fixture all implement http.RoundTripper, so they
// compose: a fixture can be registered as a route and a Response can be queued directly.
package fake
