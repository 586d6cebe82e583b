package activities

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeActivityDispatch(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
		want interface{}
	}{
		{
			name: "like",
			doc:  `{"id":"https://remote.example.com/activities/like/1","type":"Like","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/post/1"}`,
			want: &Vote{},
		},
		{
			name: "dislike",
			doc:  `{"id":"https://remote.example.com/activities/dislike/1","type":"Dislike","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/post/1"}`,
			want: &Vote{},
		},
		{
			name: "undo of like",
			doc:  `{"id":"https://remote.example.com/activities/undo/1","type":"Undo","actor":"https://remote.example.com/u/bob","object":{"id":"https://remote.example.com/activities/like/1","type":"Like","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/post/1"}}`,
			want: &UndoVote{},
		},
		{
			name: "undo of follow",
			doc:  `{"id":"https://remote.example.com/activities/undo/2","type":"Undo","actor":"https://remote.example.com/u/bob","object":{"id":"https://remote.example.com/activities/follow/1","type":"Follow","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/c/golang"}}`,
			want: &UndoFollow{},
		},
		{
			name: "add",
			doc:  `{"id":"https://remote.example.com/activities/add/1","type":"Add","actor":"https://remote.example.com/u/alice","object":"https://remote.example.com/u/carol","target":"https://remote.example.com/c/golang/moderators","to":["https://www.w3.org/ns/activitystreams#Public"]}`,
			want: &AddMod{},
		},
		{
			name: "remove",
			doc:  `{"id":"https://remote.example.com/activities/remove/1","type":"Remove","actor":"https://remote.example.com/u/alice","object":"https://remote.example.com/u/bob","target":"https://remote.example.com/c/golang/moderators","to":["https://www.w3.org/ns/activitystreams#Public"]}`,
			want: &RemoveMod{},
		},
		{
			name: "follow",
			doc:  `{"id":"https://remote.example.com/activities/follow/1","type":"Follow","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/c/golang"}`,
			want: &Follow{},
		},
		{
			name: "create",
			doc:  `{"id":"https://remote.example.com/activities/create/1","type":"Create","actor":"https://remote.example.com/u/bob","to":["https://www.w3.org/ns/activitystreams#Public"],"object":{"id":"https://remote.example.com/post/1","type":"Page","attributedTo":"https://remote.example.com/u/bob"}}`,
			want: &CreateOrUpdatePage{},
		},
		{
			name: "delete",
			doc:  `{"id":"https://remote.example.com/activities/delete/1","type":"Delete","actor":"https://remote.example.com/u/bob","to":["https://www.w3.org/ns/activitystreams#Public"],"object":"https://remote.example.com/post/1"}`,
			want: &Delete{},
		},
		{
			name: "announce",
			doc:  `{"id":"https://remote.example.com/activities/announce/1","type":"Announce","actor":"https://remote.example.com/c/golang","to":["https://www.w3.org/ns/activitystreams#Public"],"object":{"id":"https://remote.example.com/activities/like/1","type":"Like","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/post/1"}}`,
			want: &Announce{},
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			act, err := DecodeActivity([]byte(c.doc))
			if err != nil {
				t.Errorf("decode failed: %v", err)
				t.FailNow()
			}
			got, want := typeName(act), typeName(c.want)
			if got != want {
				t.Errorf("decoded into %s, wanted %s", got, want)
			}
		})
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *Vote:
		return "Vote"
	case *UndoVote:
		return "UndoVote"
	case *UndoFollow:
		return "UndoFollow"
	case *AddMod:
		return "AddMod"
	case *RemoveMod:
		return "RemoveMod"
	case *Follow:
		return "Follow"
	case *CreateOrUpdatePage:
		return "CreateOrUpdatePage"
	case *Delete:
		return "Delete"
	case *Announce:
		return "Announce"
	}
	return "unknown"
}

func TestDecodeActivityRejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "unknown kind",
			doc:  `{"id":"https://remote.example.com/activities/block/1","type":"Block","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/u/carol"}`,
			want: ErrUnsupportedActivity,
		},
		{
			name: "undo of unknown kind",
			doc:  `{"id":"https://remote.example.com/activities/undo/1","type":"Undo","actor":"https://remote.example.com/u/bob","object":{"type":"Block"}}`,
			want: ErrUnsupportedActivity,
		},
		{
			name: "undo of bare reference",
			doc:  `{"id":"https://remote.example.com/activities/undo/1","type":"Undo","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/activities/like/1"}`,
			want: ErrUnsupportedActivity,
		},
		{
			name: "not json",
			doc:  `certainly not an activity`,
			want: ErrMalformedEnvelope,
		},
		{
			name: "missing id",
			doc:  `{"type":"Like","actor":"https://remote.example.com/u/bob","object":"https://remote.example.com/post/1"}`,
			want: ErrMalformedEnvelope,
		},
		{
			name: "missing actor",
			doc:  `{"id":"https://remote.example.com/activities/like/1","type":"Like","object":"https://remote.example.com/post/1"}`,
			want: ErrMalformedEnvelope,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeActivity([]byte(c.doc))
			if !errors.Is(err, c.want) {
				t.Errorf("got %v, wanted %v", err, c.want)
			}
		})
	}
}

// Unknown fields on an activity must survive a decode/encode round trip
// verbatim so relaying never strips peer extensions.
func TestUnparsedFieldsSurviveRoundTrip(t *testing.T) {
	t.Parallel()

	doc := `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "https://remote.example.com/activities/remove/1",
		"type": "Remove",
		"actor": "https://remote.example.com/u/alice",
		"object": "https://remote.example.com/u/bob",
		"target": "https://remote.example.com/c/golang/moderators",
		"to": ["https://www.w3.org/ns/activitystreams#Public"],
		"sensitive": false,
		"source": {"content": "mod removal", "mediaType": "text/markdown"}
	}`

	act, err := DecodeActivity([]byte(doc))
	if err != nil {
		t.Errorf("decode failed: %v", err)
		t.FailNow()
	}
	remove, ok := act.(*RemoveMod)
	if !ok {
		t.Errorf("decoded into %s, wanted RemoveMod", typeName(act))
		t.FailNow()
	}

	for _, key := range []string{"sensitive", "source"} {
		if _, ok := remove.Unparsed[key]; !ok {
			t.Errorf("unparsed bag lost %q", key)
		}
	}
	if _, ok := remove.Unparsed["actor"]; ok {
		t.Errorf("recognized field leaked into the unparsed bag")
	}

	out, err := json.Marshal(remove)
	if err != nil {
		t.Errorf("marshal failed: %v", err)
		t.FailNow()
	}

	var got, want map[string]interface{}
	if err := json.Unmarshal(out, &got); err != nil {
		t.Errorf("re-decode failed: %v", err)
		t.FailNow()
	}
	if err := json.Unmarshal([]byte(doc), &want); err != nil {
		t.Errorf("re-decode of input failed: %v", err)
		t.FailNow()
	}
	// The @context wrapper belongs to the transport layer, not the
	// envelope.
	delete(want, "@context")

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip changed the document (-want +got):\n%s", diff)
	}
}

func TestAudienceAcceptsStringAndArray(t *testing.T) {
	t.Parallel()

	var one Audience
	if err := json.Unmarshal([]byte(`"https://www.w3.org/ns/activitystreams#Public"`), &one); err != nil {
		t.Errorf("single string rejected: %v", err)
		t.FailNow()
	}
	if !one.Contains(Public) {
		t.Errorf("single string audience does not contain its value")
	}

	var many Audience
	if err := json.Unmarshal([]byte(`["https://remote.example.com/c/golang","https://www.w3.org/ns/activitystreams#Public"]`), &many); err != nil {
		t.Errorf("array rejected: %v", err)
		t.FailNow()
	}
	if !many.Contains(Public) || !many.Contains("https://remote.example.com/c/golang") {
		t.Errorf("array audience lost members: %v", many)
	}
	if many.Contains("https://remote.example.com/u/bob") {
		t.Errorf("audience claims a member it was never given")
	}
}
