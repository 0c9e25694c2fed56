// Package connector sends requests to one HTTP API with shared configuration.
//
// A Connector resolves each Request's endpoint against its base URL, merges default and
// per-request headers, encodes JSON or form bodies and applies the current credentials.
// Responses come back as *response.Response whatever their status.
//
//	flow := oauth2flow.NewFlow(cfg)
//	github := connector.New("https://api.github.com",
//	    connector.WithHeader("X-GitHub-Api-Version", "2022-11-28"),
//	    connector.WithOAuth(flow),
//	)
//
//	oauth, err := github.OAuth()
//	auth, err := oauth.AccessToken(ctx, code)
//	github.Authenticate(auth)
//
//	resp, err := github.Send(ctx, connector.Get("/user/repos", url.Values{"per_page": {"10"}}))
package connector
