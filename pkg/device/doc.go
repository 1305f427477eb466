// Package device drives every service endpoint of one set.
//
// A Device owns one service.Protocol per endpoint, created on first use, and
// routes calls through a circuit breaker that opens after repeated network
// failures so an unplugged set fails fast. Device and HTTP errors never trip
// the breaker.
//
// InvokeAwake adds the power lifecycle: when a call reports the display as
// off and a Waker is configured, the set is woken and the call retried with
// backoff until it answers or the attempts run out.
//
//	d, _ := device.New(device.Config{
//	    BaseURL:     "http://192.168.1.20/sony",
//	    Sender:      transport.NewInvoker(nil, transport.DefaultConfig()),
//	    Credentials: credentials.NewStatic(credentials.FromPSK("0000")),
//	})
//	res, err := d.Invoke(ctx, "system", "getPowerStatus", "1.0", nil)
package device
