package s3

import "testing"

func TestNewClientNormalizesEndpoint(t *testing.T) {
	client, err := NewClient(Config{Endpoint: "https://storage.example.com/", AccessKey: "a", SecretKey: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := client.EndpointURL().Host; got != "storage.example.com" {
		t.Fatalf("unexpected host: got %q want %q", got, "storage.example.com")
	}
	if got := client.EndpointURL().Scheme; got != "https" {
		t.Fatalf("unexpected scheme: got %q want https", got)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{Endpoint: "  http:// "}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
