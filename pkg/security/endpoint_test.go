package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEndpoint(t *testing.T) {
	local := EndpointPolicy{AllowHTTP: true, AllowLocal: true}

	tests := []struct {
		name    string
		url     string
		policy  EndpointPolicy
		wantErr bool
	}{
		{"https", "https://api.openai.com/v1", EndpointPolicy{}, false},
		{"public ip", "https://8.8.8.8/v1", EndpointPolicy{}, false},
		{"http rejected", "http://api.example.com", EndpointPolicy{}, true},
		{"http allowed", "http://api.example.com", EndpointPolicy{AllowHTTP: true}, false},
		{"scheme", "ftp://example.com", local, true},
		{"no host", "https:///v1", local, true},
		{"localhost", "https://localhost:11434", EndpointPolicy{}, true},
		{"dot local", "https://llm.local", EndpointPolicy{}, true},
		{"loopback", "https://127.0.0.1:8080", EndpointPolicy{}, true},
		{"private", "https://10.0.0.4", EndpointPolicy{}, true},
		{"zoned", "https://[fe80::1%25eth0]/", EndpointPolicy{}, true},
		{"zoned allowed", "https://[fe80::1%25eth0]/", local, false},
		{"local allowed", "http://127.0.0.1:11434/v1", local, false},
		{"unspecified", "https://0.0.0.0", local, true},
		{"mapped loopback", "https://[::ffff:127.0.0.1]/", EndpointPolicy{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpoint(tt.url, tt.policy)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEndpoint_Sentinel(t *testing.T) {
	err := ValidateEndpoint("http://example.com", EndpointPolicy{})
	assert.ErrorIs(t, err, ErrEndpointNotAllowed)
}
