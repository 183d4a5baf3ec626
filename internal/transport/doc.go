// Package transport is the non-blocking, multi-transfer HTTP engine used by the
// request manager.
//
// The engine is modeled on a multi-handle: transfers are configured with
// options, registered with a Multi, driven by repeated calls to Multi.Perform,
// and reported through Multi.InfoRead once they finish. Every caller-supplied
// callback (upload, response header, response body, debug) runs on the
// goroutine that calls Add or Perform; network I/O happens elsewhere and is
// never observed directly by the caller.
//
// Example usage:
//
//	nt := transport.NewNetTransport(transport.Config{Timeout: 10 * time.Second})
//	if err := nt.GlobalInit(nil); err != nil {
//	    log.Fatal(err)
//	}
//	defer nt.GlobalCleanup()
//
//	multi, _ := nt.NewMulti()
//	t := transport.NewTransfer()
//	_ = t.Configure(transport.URL("http://127.0.0.1:8080/"), transport.WriteFunction(onBody))
//	_ = multi.Add(t)
//	for running := 1; running > 0; {
//	    running, _ = multi.Perform()
//	    for msg := multi.InfoRead(); msg != nil; msg = multi.InfoRead() {
//	        // msg.Transfer.ResponseCode(), msg.Result
//	    }
//	}
package transport
