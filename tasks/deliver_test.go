package tasks

import (
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/parleysocial/parley/keystore"
)

// capturingTransport records the request it served and answers with a
// fixed status.
type capturingTransport struct {
	status int
	req    *http.Request
	body   []byte
}

func (c *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.req = req
	if req.Body != nil {
		body, err := ioutil.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		c.body = body
	}

	return &http.Response{
		Status:     http.StatusText(c.status),
		StatusCode: c.status,
		Proto:      req.Proto,
		ProtoMajor: req.ProtoMajor,
		ProtoMinor: req.ProtoMinor,
		Request:    req,
		Header:     make(http.Header),
		Body:       ioutil.NopCloser(strings.NewReader("")),
	}, nil
}

func newDeliver(t *testing.T, signer Signer, transport http.RoundTripper) *Deliver {
	t.Helper()

	taskID, err := NewTaskID()
	if err != nil {
		t.Errorf("could not mint task id: %v", err)
		t.FailNow()
	}
	target, err := url.Parse("https://remote.example.com/inbox")
	if err != nil {
		t.Errorf("bad target url: %v", err)
		t.FailNow()
	}

	return &Deliver{
		TaskID:   taskID,
		Activity: []byte(`{"type":"Like","id":"https://local.example.com/activities/like/1"}`),
		Target:   *target,
		KeyID:    "https://local.example.com/actor#main-key",
		Signer:   signer,
		Client:   &http.Client{Transport: transport},
	}
}

func TestDeliverPostsSignedActivity(t *testing.T) {
	t.Parallel()

	keys := keystore.TestStore()
	transport := &capturingTransport{status: http.StatusOK}
	deliver := newDeliver(t, keys, transport)

	if err := deliver.Run(); err != nil {
		t.Errorf("delivery failed: %v", err)
		t.FailNow()
	}

	req := transport.req
	if req == nil {
		t.Errorf("no request was made")
		t.FailNow()
	}
	if req.Method != http.MethodPost {
		t.Errorf("delivery used %s, wanted POST", req.Method)
	}
	if req.URL.String() != deliver.Target.String() {
		t.Errorf("delivery went to %s", req.URL.String())
	}
	if ct := req.Header.Get("Content-Type"); ct != "application/activity+json" {
		t.Errorf("content type is %q", ct)
	}
	if string(transport.body) != string(deliver.Activity) {
		t.Errorf("delivered body differs from the activity")
	}

	date := req.Header.Get("Date")
	if date == "" {
		t.Errorf("delivery lacks a date header")
		t.FailNow()
	}

	sigHeader := req.Header.Get("Signature")
	if !strings.Contains(sigHeader, `keyId="https://local.example.com/actor#main-key"`) {
		t.Errorf("signature header lacks the key id: %s", sigHeader)
	}
	if !strings.Contains(sigHeader, `headers="(request-target) date"`) {
		t.Errorf("signature header lacks the signed header list: %s", sigHeader)
	}

	// The signature must verify over the reconstructed signing string.
	signingString := fmt.Sprintf("(request-target): post %s\ndate: %s", deliver.Target.Path, date)
	sig := extractSignature(t, sigHeader)
	if err := keys.Verify([]byte(signingString), sig); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func extractSignature(t *testing.T, header string) string {
	t.Helper()
	for _, part := range strings.Split(header, ",") {
		if strings.HasPrefix(part, "signature=") {
			return strings.Trim(strings.TrimPrefix(part, "signature="), `"`)
		}
	}
	t.Errorf("signature header has no signature component: %s", header)
	t.FailNow()
	return ""
}

func TestDeliverWithoutSignerSendsUnsigned(t *testing.T) {
	t.Parallel()

	transport := &capturingTransport{status: http.StatusOK}
	deliver := newDeliver(t, nil, transport)

	if err := deliver.Run(); err != nil {
		t.Errorf("delivery failed: %v", err)
		t.FailNow()
	}
	if sig := transport.req.Header.Get("Signature"); sig != "" {
		t.Errorf("unsigned delivery carries a signature: %s", sig)
	}
}

func TestDeliverFailsOnErrorStatus(t *testing.T) {
	t.Parallel()

	transport := &capturingTransport{status: http.StatusInternalServerError}
	deliver := newDeliver(t, keystore.TestStore(), transport)

	if err := deliver.Run(); err == nil {
		t.Errorf("delivery to a failing inbox reported success")
	}
}
