package dispatch

import (
	"bytes"
	"net"
	"net/http"
	"time"

	"github.com/angeloszaimis/proxy-router/internal/backend"
	"github.com/angeloszaimis/proxy-router/internal/reqctx"
	"github.com/angeloszaimis/proxy-router/internal/routing"
)

// BufferedForwarder replays the captured raw body on a fresh connection
// that is closed once the response has been relayed.
type BufferedForwarder struct {
	client *http.Client
}

func NewBufferedForwarder() *BufferedForwarder {
	return &BufferedForwarder{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				DisableKeepAlives:   true,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f *BufferedForwarder) Name() string {
	return "buffered"
}

func (f *BufferedForwarder) Forward(w http.ResponseWriter, r *http.Request, route *routing.ResolvedRoute, svc *backend.Service) error {
	body, _ := reqctx.RawBody(r.Context())

	target := *svc.URL()
	target.Path = route.RewrittenPath
	target.RawPath = route.RewrittenRawPath
	target.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}

	for key, values := range r.Header {
		if key == "Host" || key == "Content-Length" {
			continue
		}
		out.Header[key] = append([]string(nil), values...)
	}
	removeHopHeaders(out.Header)
	setForwarded(out, r)

	out.Host = target.Host
	out.ContentLength = int64(len(body))
	out.Close = true

	res, err := f.client.Do(out)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	removeHopHeaders(res.Header)
	copyHeader(w.Header(), res.Header)
	w.WriteHeader(res.StatusCode)

	return copyBody(w, res.Body)
}

func setForwarded(out, in *http.Request) {
	if ip, _, err := net.SplitHostPort(in.RemoteAddr); err == nil {
		if prior := in.Header.Get("X-Forwarded-For"); prior != "" {
			ip = prior + ", " + ip
		}
		out.Header.Set("X-Forwarded-For", ip)
	}
	out.Header.Set("X-Forwarded-Host", in.Host)
	if in.TLS != nil {
		out.Header.Set("X-Forwarded-Proto", "https")
	} else {
		out.Header.Set("X-Forwarded-Proto", "http")
	}
}
