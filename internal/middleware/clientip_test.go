package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		hops       int
		remoteAddr string
		forwarded  []string
		want       string
	}{
		{name: "NoHeader", hops: 1, remoteAddr: "10.0.0.1:4000", want: "10.0.0.1"},
		{name: "ZeroHopsIgnoresHeader", hops: 0, remoteAddr: "10.0.0.1:4000", forwarded: []string{"203.0.113.1"}, want: "10.0.0.1"},
		{name: "OneHopUsesRightmost", hops: 1, remoteAddr: "10.0.0.1:4000", forwarded: []string{"198.51.100.7, 203.0.113.1"}, want: "203.0.113.1"},
		{name: "TwoHops", hops: 2, remoteAddr: "10.0.0.1:4000", forwarded: []string{"198.51.100.7, 203.0.113.1, 10.0.0.9"}, want: "203.0.113.1"},
		{name: "HopsBeyondHeader", hops: 3, remoteAddr: "10.0.0.1:4000", forwarded: []string{"203.0.113.1"}, want: "203.0.113.1"},
		{name: "RepeatedHeaders", hops: 1, remoteAddr: "10.0.0.1:4000", forwarded: []string{"198.51.100.7", "203.0.113.1"}, want: "203.0.113.1"},
		{name: "InvalidEntry", hops: 1, remoteAddr: "10.0.0.1:4000", forwarded: []string{"not-an-ip"}, want: "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := ClientIP(tt.hops)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
			req.RemoteAddr = tt.remoteAddr
			for _, value := range tt.forwarded {
				req.Header.Add("X-Forwarded-For", value)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
