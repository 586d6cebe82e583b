package tasks

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Deliver is a task which posts one signed activity to one inbox.
// Retries and backoff belong to whoever drains the queue.
type Deliver struct {
	TaskID   TaskID
	Activity []byte
	Target   url.URL
	KeyID    string
	Signer   Signer
	Client   *http.Client
}

// ID returns the ID of the Deliver task.
func (d *Deliver) ID() TaskID {
	return d.TaskID
}

// Run delivers the activity to the target inbox.
func (d *Deliver) Run() error {
	req, err := http.NewRequest(http.MethodPost, d.Target.String(), bytes.NewReader(d.Activity))
	if err != nil {
		return err
	}
	date := time.Now().UTC().Format(http.TimeFormat)
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("Date", date)

	if d.Signer != nil {
		signingString := fmt.Sprintf("(request-target): post %s\ndate: %s", d.Target.Path, date)
		sig, err := d.Signer.Sign([]byte(signingString))
		if err != nil {
			return fmt.Errorf("could not sign delivery: %v", err)
		}
		req.Header.Set("Signature", fmt.Sprintf(
			`keyId=%q,headers="(request-target) date",signature=%q`, d.KeyID, sig,
		))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode > 399 {
		return fmt.Errorf("inbox %s answered %d", d.Target.String(), resp.StatusCode)
	}
	return nil
}
