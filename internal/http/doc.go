// Package http is the asynchronous request manager: it submits HTTP requests to
// a non-blocking multi-transfer engine, optionally signs them with a bearer
// credential from an identity provider, and retries with a refreshed
// credential when a server answers 401.
//
// The manager is single-threaded and cooperative. Submit and Pump return
// immediately; the host calls Pump periodically (for example once per frame)
// and every callback, including the completion callback, runs inside Submit
// or Pump on the calling goroutine.
//
// Key features:
//   - One RequestContext per in-flight request, owned by the manager
//   - Response headers and body accumulated in receive order
//   - 401 responses trigger a forced credential refresh, bounded by MaxRetries
//   - Every submitted request completes exactly once, including on transport
//     and identity failures (see RequestContext.Err)
//   - Request/response hooks for interception
//   - Bearer tokens sanitized in logs
//
// Example usage:
//
//	m := http.NewManager(transport.NewNetTransport(transport.Config{}), issuer, http.Config{})
//	if err := m.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	defer m.CleanUp()
//
//	err := m.Submit(user, http.VerbGET, "https://example.test/profile", nil, nil,
//	    func(rc *http.RequestContext) {
//	        fmt.Println(rc.StatusCode(), string(rc.ResponseBody()))
//	    })
//
//	for m.Pending() > 0 {
//	    m.Pump()
//	    time.Sleep(10 * time.Millisecond)
//	}
package http
