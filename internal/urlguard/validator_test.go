// File: internal/urlguard/validator_test.go
package urlguard

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeResolver returns canned answers per host.
type fakeResolver struct {
	ips map[string][]net.IP
	err error
}

func (f *fakeResolver) LookupIP(_ context.Context, _, host string) ([]net.IP, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ips[host], nil
}

func publicValidator() *Validator {
	return &Validator{
		Resolver: &fakeResolver{ips: map[string][]net.IP{
			"example.com":     {net.ParseIP("93.184.216.34")},
			"sub.example.com": {net.ParseIP("93.184.216.35")},
			"evil.test":       {net.ParseIP("10.0.0.5")},
			"dual.test":       {net.ParseIP("93.184.216.34"), net.ParseIP("192.168.1.1")},
		}},
		Logger: zap.NewNop(),
	}
}

func TestValidateAccepts(t *testing.T) {
	v := publicValidator()

	got, err := v.Validate(context.Background(), "https://example.com/path?q=1", Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/path?q=1", got)

	got, err = v.Validate(context.Background(), "  http://example.com  ", Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", got)
}

func TestValidateRejectsSchemes(t *testing.T) {
	v := publicValidator()

	for _, raw := range []string{
		"ftp://example.com/file",
		"file:///etc/passwd",
		"javascript:alert(1)",
		"example.com/no-scheme",
	} {
		_, err := v.Validate(context.Background(), raw, Options{})
		require.Error(t, err, raw)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestValidateRejectsLoopbackAndPrivate(t *testing.T) {
	v := publicValidator()

	tests := []struct {
		raw    string
		reason string
	}{
		{"http://localhost:8080/", "loopback hostname"},
		{"http://127.0.0.1/", "private range"},
		{"http://10.1.2.3/", "private range"},
		{"http://192.168.0.10/", "private range"},
		{"http://172.16.5.5/", "private range"},
		{"http://169.254.169.254/latest/meta-data/", "private range"},
		{"http://0.0.0.0/", "private range"},
		{"http://[::1]/", "private range"},
		{"http://[fe80::1]/", "private range"},
		{"http://[::ffff:127.0.0.1]/", "private range"},
	}
	for _, tt := range tests {
		_, err := v.Validate(context.Background(), tt.raw, Options{})
		require.Error(t, err, tt.raw)
		assert.Contains(t, err.Error(), tt.reason, tt.raw)
	}
}

func TestValidateAllowList(t *testing.T) {
	v := publicValidator()
	opts := Options{Allow: []string{"example.com"}}

	_, err := v.Validate(context.Background(), "https://example.com/", opts)
	require.NoError(t, err)

	// Subdomains of an allowed entry pass.
	_, err = v.Validate(context.Background(), "https://sub.example.com/", opts)
	require.NoError(t, err)

	_, err = v.Validate(context.Background(), "https://dual.test/", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the allowed domain list")
}

func TestValidateBlockList(t *testing.T) {
	v := publicValidator()

	_, err := v.Validate(context.Background(), "https://sub.example.com/", Options{Block: []string{"example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is blocked")

	// Block wins even when the host is also allowed.
	_, err = v.Validate(context.Background(), "https://example.com/", Options{
		Allow: []string{"example.com"},
		Block: []string{"example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is blocked")
}

func TestValidateRebindingProtection(t *testing.T) {
	v := publicValidator()

	_, err := v.Validate(context.Background(), "https://evil.test/", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolves to private address")

	// One private answer among public ones still rejects.
	_, err = v.Validate(context.Background(), "https://dual.test/", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolves to private address")
}

func TestValidateFailsClosedOnDNS(t *testing.T) {
	v := &Validator{Resolver: &fakeResolver{err: errors.New("servfail")}, Logger: zap.NewNop()}

	_, err := v.Validate(context.Background(), "https://example.com/", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DNS resolution failed")

	v = &Validator{Resolver: &fakeResolver{ips: map[string][]net.IP{}}, Logger: zap.NewNop()}
	_, err = v.Validate(context.Background(), "https://example.com/", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no addresses")
}

func TestValidateSkipsLookupForIPLiterals(t *testing.T) {
	// The resolver would fail; a public IP literal must not trigger it.
	v := &Validator{Resolver: &fakeResolver{err: errors.New("unreachable")}, Logger: zap.NewNop()}

	got, err := v.Validate(context.Background(), "http://93.184.216.34/", Options{})
	require.NoError(t, err)
	assert.Equal(t, "http://93.184.216.34/", got)
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, matchesDomain("example.com", "example.com"))
	assert.True(t, matchesDomain("a.b.example.com", "example.com"))
	assert.True(t, matchesDomain("EXAMPLE.com.", "example.com"))
	assert.False(t, matchesDomain("notexample.com", "example.com"))
	assert.False(t, matchesDomain("example.com.evil.net", "example.com"))
}
