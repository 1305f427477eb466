package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/log"
	"github.com/bravia-rpc/bravia-go/pkg/service"
	"github.com/bravia-rpc/bravia-go/pkg/transport"
	"github.com/bravia-rpc/bravia-go/pkg/wire"
)

// fakeSender plays an endpoint that answers introspection from fixed data
// and echoes every other call.
type fakeSender struct {
	mu       sync.Mutex
	versions []any
	methods  map[string][][]any
	failNext map[string]error
	gate     chan struct{}
	calls    []*wire.Request
	creds    []*credentials.Credentials
	headers  []http.Header
	urls     []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		versions: []any{"1.0", "1.1"},
		methods: map[string][][]any{
			"1.0": {
				{"getVersions", []any{}, []any{"string*"}, "1.0"},
				{"getMethodTypes", []any{"string"}, []any{"string*"}, "1.0"},
				{"getVolumeInformation", []any{}, []any{`{"target":"string","volume":"int"}*`}, "1.0"},
				{"setAudioVolume", []any{`{"target":"string","volume":"string"}`}, []any{}, "1.0"},
			},
			"1.1": {
				{"getVolumeInformation", []any{}, []any{`{"target":"string","volume":"int","mute":"bool"}*`}, "1.1"},
				{"setAudioMute", []any{`{"status":"bool"}`}, []any{}, "1.1"},
			},
		},
		failNext: map[string]error{},
	}
}

func (f *fakeSender) Send(ctx context.Context, url string, creds *credentials.Credentials, payload transport.Payload, extra http.Header) (*transport.Result, error) {
	req := payload.Request()

	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.creds = append(f.creds, creds)
	f.headers = append(f.headers, extra)
	f.urls = append(f.urls, url)
	gate := f.gate
	err := f.failNext[req.Method]
	delete(f.failNext, req.Method)
	f.mu.Unlock()

	if req.Method == service.MethodGetVersions && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	switch req.Method {
	case service.MethodGetVersions:
		return &transport.Result{Result: f.versions}, nil
	case service.MethodGetMethodTypes:
		rows, ok := f.methods[req.Params[0].(string)]
		if !ok {
			return nil, notFound(url, req)
		}
		return &transport.Result{Results: rows}, nil
	}
	return &transport.Result{Result: []any{map[string]any{"method": req.Method, "version": req.Version}}}, nil
}

func (f *fakeSender) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeSender) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSender) last() *wire.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func notFound(url string, req *wire.Request) error {
	return &transport.Error{Kind: transport.KindHTTP, Title: "Not Found", Code: 404, StatusCode: 404, URL: url, Request: req}
}

func newProtocol(t *testing.T, sender service.Sender) *service.Protocol {
	t.Helper()
	p, err := service.New(service.Config{
		BaseURL:  "http://tv/sony",
		Endpoint: "audio",
		Sender:   sender,
	})
	require.NoError(t, err)
	return p
}

func TestNewValidatesConfig(t *testing.T) {
	sender := newFakeSender()
	for name, cfg := range map[string]service.Config{
		"no base":     {Endpoint: "audio", Sender: sender},
		"no endpoint": {BaseURL: "http://tv/sony", Sender: sender},
		"no sender":   {BaseURL: "http://tv/sony", Endpoint: "audio"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := service.New(cfg)
			assert.ErrorIs(t, err, service.ErrInvalidConfig)
		})
	}
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://tv/sony/system", service.EndpointURL("http://tv/sony", "system"))
	assert.Equal(t, "http://tv/sony/system", service.EndpointURL("http://tv/sony/", "/system"))

	p := newProtocol(t, newFakeSender())
	assert.Equal(t, "http://tv/sony/audio", p.URL())
	assert.Equal(t, "audio", p.Endpoint())
	assert.Equal(t, service.StateUninitialized, p.State())
	assert.Nil(t, p.Catalog())
}

func TestDescribeDiscoversOnce(t *testing.T) {
	sender := newFakeSender()
	p := newProtocol(t, sender)

	first, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "audio", first.Endpoint)
	assert.Len(t, first.Methods, 6)
	assert.Equal(t, service.StateReady, p.State())

	calls := sender.total()
	assert.Equal(t, 1, sender.count(service.MethodGetVersions))
	assert.Equal(t, 2, sender.count(service.MethodGetMethodTypes))

	second, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, calls, sender.total(), "second Describe must not touch the network")
	assert.Equal(t, first, second)

	first.Methods[0].Name = "mutated"
	third, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "getVersions", third.Methods[0].Name, "callers get a fresh slice")
}

func TestDescribeParsesDescriptors(t *testing.T) {
	p := newProtocol(t, newFakeSender())

	desc, err := p.Describe(context.Background(), "1.1")
	require.NoError(t, err)
	require.Len(t, desc.Methods, 2)

	vol := desc.Methods[0]
	assert.Equal(t, "getVolumeInformation", vol.Name)
	assert.Equal(t, "1.1", vol.Version)
	assert.Empty(t, vol.Inputs)
	require.Len(t, vol.Outputs, 1)
	assert.Equal(t, wire.ParamObject, vol.Outputs[0].Kind)
	assert.True(t, vol.Outputs[0].Array)
	assert.Len(t, vol.Outputs[0].Fields, 3)
}

func TestDescribeFilterIsSubset(t *testing.T) {
	p := newProtocol(t, newFakeSender())

	all, err := p.Describe(context.Background(), "")
	require.NoError(t, err)

	for _, version := range []string{"1.0", "1.1", "9.9"} {
		filtered, err := p.Describe(context.Background(), version)
		require.NoError(t, err)
		assert.NotNil(t, filtered.Methods)
		for _, md := range filtered.Methods {
			assert.Equal(t, version, md.Version)
			assert.Contains(t, all.Methods, md)
		}
	}

	none, err := p.Describe(context.Background(), "9.9")
	require.NoError(t, err)
	assert.Empty(t, none.Methods)
}

func TestInvokeUnknownMethodMakesNoCall(t *testing.T) {
	sender := newFakeSender()
	p := newProtocol(t, sender)
	_, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	before := sender.total()

	res, err := p.Invoke(context.Background(), "getFoo", "1.0", nil, nil)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrUnknownMethod)

	var ume *service.UnknownMethodError
	require.ErrorAs(t, err, &ume)
	assert.Equal(t, "audio", ume.Endpoint)
	assert.Equal(t, "getFoo", ume.Method)
	assert.Contains(t, err.Error(), "Unknown Service Method")

	assert.Equal(t, before, sender.total())
}

func TestInvokeVersionResolution(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		requested string
		sent      string
	}{
		{"exact", "getVolumeInformation", "1.0", "1.0"},
		{"exact newer", "getVolumeInformation", "1.1", "1.1"},
		{"unadvertised falls back to latest", "getVolumeInformation", "2.0", "1.1"},
		{"empty means 1.0", "setAudioVolume", "", "1.0"},
		{"only version available", "setAudioMute", "1.0", "1.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newFakeSender()
			p := newProtocol(t, sender)

			res, err := p.Invoke(context.Background(), tt.method, tt.requested, nil, nil)
			require.NoError(t, err)

			req := sender.last()
			assert.Equal(t, tt.method, req.Method)
			assert.Equal(t, tt.sent, req.Version)
			assert.Equal(t, service.CallID, req.ID)
			assert.Equal(t, []any{}, req.Params)
			assert.Equal(t, map[string]any{"method": tt.method, "version": tt.sent}, res.First())
		})
	}
}

func TestInvokeParamsAndHeaders(t *testing.T) {
	sender := newFakeSender()
	p, err := service.New(service.Config{
		BaseURL:     "http://tv/sony",
		Endpoint:    "audio",
		Sender:      sender,
		Credentials: credentials.NewStatic(credentials.FromPSK("0000")),
	})
	require.NoError(t, err)

	obj := map[string]any{"target": "speaker", "volume": "+1"}
	hdr := http.Header{"X-Trace": []string{"1"}}
	_, err = p.Invoke(context.Background(), "setAudioVolume", "1.0", obj, hdr)
	require.NoError(t, err)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	n := len(sender.calls) - 1
	assert.Equal(t, []any{obj}, sender.calls[n].Params)
	assert.Equal(t, hdr, sender.headers[n])
	assert.Equal(t, "http://tv/sony/audio", sender.urls[n])
	for _, c := range sender.creds {
		require.NotNil(t, c)
		assert.Equal(t, "0000", c.PSK)
	}
}

func TestGetVersionsNormalizesGroups(t *testing.T) {
	sender := newFakeSender()
	sender.versions = []any{"1.0", []any{"1.1", "1.2"}, 3.0, []any{}}
	p := newProtocol(t, sender)

	groups, err := p.GetVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []service.VersionGroup{{"1.0"}, {"1.1", "1.2"}}, groups)

	req := sender.last()
	assert.Equal(t, service.MethodGetVersions, req.Method)
	assert.Equal(t, "1.0", req.Version)
	assert.Equal(t, []any{}, req.Params)
}

func TestDiscoveryWalksGroupedVersions(t *testing.T) {
	sender := newFakeSender()
	sender.versions = []any{[]any{"1.0", "1.1"}, "1.2"}
	p := newProtocol(t, sender)

	desc, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, desc.Methods, 6, "missing 1.2 listing is skipped")
	assert.Equal(t, 3, sender.count(service.MethodGetMethodTypes))
}

func TestDiscoveryNotFoundGivesEmptyCatalog(t *testing.T) {
	sender := newFakeSender()
	sender.failNext[service.MethodGetVersions] = notFound("http://tv/sony/audio", nil)
	p := newProtocol(t, sender)

	desc, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, desc.Methods)
	assert.Equal(t, service.StateReady, p.State())

	before := sender.total()
	_, err = p.Invoke(context.Background(), "getVolumeInformation", "1.0", nil, nil)
	assert.ErrorIs(t, err, service.ErrUnknownMethod)
	assert.Equal(t, before, sender.total())
}

func TestDiscoveryFailureIsNotCached(t *testing.T) {
	sender := newFakeSender()
	boom := &transport.Error{Kind: transport.KindNetwork, Title: "Network Error", NetCode: transport.NetRefused, Err: errors.New("refused")}
	sender.failNext[service.MethodGetVersions] = boom
	p := newProtocol(t, sender)

	_, err := p.Describe(context.Background(), "")
	require.Error(t, err)
	assert.True(t, transport.IsNetwork(err))
	assert.Equal(t, service.StateUninitialized, p.State())

	desc, err := p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, desc.Methods, 6)
	assert.Equal(t, 2, sender.count(service.MethodGetVersions))
}

func TestDiscoveryMethodTypesErrorFails(t *testing.T) {
	sender := newFakeSender()
	sender.failNext[service.MethodGetMethodTypes] = &transport.Error{Kind: transport.KindProtocol, Code: 401, Message: "Unauthorized"}
	p := newProtocol(t, sender)

	_, err := p.Describe(context.Background(), "")
	te, ok := transport.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 401, te.Code)
	assert.Equal(t, service.StateUninitialized, p.State())
}

func TestDiscoveryPowerOff(t *testing.T) {
	sender := &powerOffSender{}
	p := newProtocol(t, sender)

	_, err := p.Describe(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrPoweredOff)
	assert.Equal(t, service.StateUninitialized, p.State())

	res, err := p.Invoke(context.Background(), "getPowerStatus", "1.0", nil, nil)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, service.ErrPoweredOff)
	assert.Equal(t, service.StateUninitialized, p.State())
}

type powerOffSender struct{}

func (powerOffSender) Send(ctx context.Context, url string, creds *credentials.Credentials, payload transport.Payload, extra http.Header) (*transport.Result, error) {
	return &transport.Result{PowerOff: true, Result: []any{40005, "Display Is Turned off"}}, nil
}

func TestConcurrentDiscoveryIsShared(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	p := newProtocol(t, sender)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Invoke(context.Background(), "getVolumeInformation", "1.1", nil, nil)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return sender.count(service.MethodGetVersions) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, service.StateDiscovering, p.State())
	close(sender.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, sender.count(service.MethodGetVersions))
	assert.Equal(t, n, sender.count("getVolumeInformation"))
}

func TestAbandonedCallerDoesNotCancelDiscovery(t *testing.T) {
	sender := newFakeSender()
	sender.gate = make(chan struct{})
	p := newProtocol(t, sender)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := p.Describe(ctxA, "")
		errA <- err
	}()
	require.Eventually(t, func() bool { return sender.count(service.MethodGetVersions) == 1 }, time.Second, time.Millisecond)

	errB := make(chan error, 1)
	go func() {
		_, err := p.Describe(context.Background(), "")
		errB <- err
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(sender.gate)
	assert.NoError(t, <-errB)
	assert.Equal(t, service.StateReady, p.State())
	assert.Equal(t, 1, sender.count(service.MethodGetVersions))
}

func TestResetForcesRediscovery(t *testing.T) {
	sender := newFakeSender()
	rec := &recorder{}
	p, err := service.New(service.Config{
		BaseURL:        "http://tv/sony",
		Endpoint:       "audio",
		Sender:         sender,
		ProtocolLogger: rec,
	})
	require.NoError(t, err)

	_, err = p.Describe(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, p.Catalog())

	p.Reset()
	assert.Equal(t, service.StateUninitialized, p.State())
	assert.Nil(t, p.Catalog())

	_, err = p.Describe(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, sender.count(service.MethodGetVersions))

	var states []string
	for _, ev := range rec.events {
		require.NotNil(t, ev.StateChange)
		assert.Equal(t, "audio", ev.Endpoint)
		states = append(states, ev.StateChange.NewState)
	}
	assert.Equal(t, []string{"DISCOVERING", "READY", "UNINITIALIZED", "DISCOVERING", "READY"}, states)
}

type recorder struct {
	mu     sync.Mutex
	events []log.Event
}

func (r *recorder) Log(ev log.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", service.StateUninitialized.String())
	assert.Equal(t, "DISCOVERING", service.StateDiscovering.String())
	assert.Equal(t, "READY", service.StateReady.String())
	assert.Equal(t, "UNKNOWN", service.State(42).String())
}
