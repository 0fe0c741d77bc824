package dispatch

import "net/http"

// statusRecorder remembers the status and reapplies the router's own
// headers over whatever the upstream copied in before they are sent.
type statusRecorder struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	overrides   http.Header
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.statusCode = code
		r.wroteHeader = true

		h := r.ResponseWriter.Header()
		for key, values := range r.overrides {
			h[key] = append([]string(nil), values...)
		}
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
