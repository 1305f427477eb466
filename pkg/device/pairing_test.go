package device_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bravia-rpc/bravia-go/pkg/credentials"
	"github.com/bravia-rpc/bravia-go/pkg/device"
	"github.com/bravia-rpc/bravia-go/pkg/service"
	"github.com/bravia-rpc/bravia-go/pkg/transport"
)

// pairingSet accepts registration only with PIN 1234.
type pairingSet struct {
	mu        sync.Mutex
	setCookie string
	params    [][]any
	auth      []string
}

func (f *pairingSet) Send(ctx context.Context, url string, creds *credentials.Credentials, payload transport.Payload, extra http.Header) (*transport.Result, error) {
	req := payload.Request()
	switch req.Method {
	case service.MethodGetVersions:
		return &transport.Result{Result: []any{[]any{"1.0"}}}, nil
	case service.MethodGetMethodTypes:
		return &transport.Result{Results: [][]any{
			{device.PairingMethod, []any{"string*"}, []any{}, "1.0"},
		}}, nil
	}

	f.mu.Lock()
	f.params = append(f.params, req.Params)
	f.auth = append(f.auth, extra.Get(credentials.HeaderAuthorization))
	f.mu.Unlock()

	if extra.Get(credentials.HeaderAuthorization) != credentials.PINHeaders("1234").Get(credentials.HeaderAuthorization) {
		return nil, &transport.Error{Kind: transport.KindHTTP, Title: "Unauthorized", Code: 401, StatusCode: 401, URL: url, Request: req, Err: transport.ErrHTTP}
	}
	h := make(http.Header)
	if f.setCookie != "" {
		h.Add("Set-Cookie", "other=1; Path=/")
		h.Add("Set-Cookie", f.setCookie)
	}
	return &transport.Result{Result: []any{}, StatusCode: 200, Header: h}, nil
}

func newPairingDevice(t *testing.T, set *pairingSet) *device.Device {
	t.Helper()
	cfg := device.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Sender = set
	d, err := device.New(cfg)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestPairerWithoutPINRequestsOne(t *testing.T) {
	set := &pairingSet{}
	p := newPairingDevice(t, set).Pairer()

	_, err := p.Token(context.Background(), "", credentials.NewSession("ctl"))
	require.ErrorIs(t, err, device.ErrPINRequired)
	assert.True(t, transport.IsUnauthorized(err))

	require.Len(t, set.auth, 1)
	assert.Empty(t, set.auth[0])
}

func TestPairerRegistersSession(t *testing.T) {
	set := &pairingSet{setCookie: "auth=tok123; Path=/sony; Max-Age=1209600"}
	p := newPairingDevice(t, set).Pairer()

	s := credentials.NewSession("ctl")
	before := time.Now()
	got, err := p.Token(context.Background(), " 1234 ", s)
	require.NoError(t, err)

	assert.Equal(t, "tok123", got.Token)
	assert.Equal(t, s.UUID, got.UUID)
	assert.Equal(t, "ctl", got.Name)
	assert.WithinDuration(t, before.Add(14*24*time.Hour), got.Expires, time.Minute)
	assert.Empty(t, s.Token, "input session must not be mutated")

	require.Len(t, set.params, 1)
	params := set.params[0]
	require.Len(t, params, 2)
	client, ok := params[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ctl:"+s.UUID, client["clientid"])
	assert.Equal(t, "ctl", client["nickname"])
	assert.Equal(t, "private", client["level"])
	assert.Equal(t, []any{map[string]any{"value": "yes", "function": "WOL"}}, params[1])
}

func TestPairerUsesCookieExpires(t *testing.T) {
	set := &pairingSet{setCookie: "auth=tok; Expires=Wed, 21 Oct 2026 07:28:00 GMT"}
	got, err := newPairingDevice(t, set).Pairer().Token(context.Background(), "1234", credentials.NewSession("ctl"))
	require.NoError(t, err)
	assert.True(t, got.Expires.Equal(time.Date(2026, 10, 21, 7, 28, 0, 0, time.UTC)))
}

func TestPairerWrongPIN(t *testing.T) {
	set := &pairingSet{setCookie: "auth=tok"}
	_, err := newPairingDevice(t, set).Pairer().Token(context.Background(), "0000", credentials.NewSession("ctl"))
	assert.ErrorIs(t, err, device.ErrPINRequired)
}

func TestPairerNoCookie(t *testing.T) {
	_, err := newPairingDevice(t, &pairingSet{}).Pairer().Token(context.Background(), "1234", credentials.NewSession("ctl"))
	assert.ErrorIs(t, err, device.ErrNoToken)
}

func TestPairerIgnoresDeletedCookie(t *testing.T) {
	for _, cookie := range []string{"auth=tok; Max-Age=0", "auth=tok; Max-Age=-1"} {
		set := &pairingSet{setCookie: cookie}
		_, err := newPairingDevice(t, set).Pairer().Token(context.Background(), "1234", credentials.NewSession("ctl"))
		assert.ErrorIs(t, err, device.ErrNoToken, cookie)
	}
}

func TestPairerRejectsBadInput(t *testing.T) {
	set := &pairingSet{}
	p := newPairingDevice(t, set).Pairer()

	_, err := p.Token(context.Background(), "12a4", credentials.NewSession("ctl"))
	assert.ErrorIs(t, err, credentials.ErrInvalidPIN)

	_, err = p.Token(context.Background(), "1234", &credentials.Session{Name: "ctl"})
	assert.ErrorIs(t, err, device.ErrInvalidConfig)

	assert.Empty(t, set.params, "invalid input must not reach the set")
}
