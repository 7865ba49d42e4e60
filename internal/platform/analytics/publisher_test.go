package analytics

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
)

type fakeJS struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJS) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil, nil
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectHistoryCleared, "v1", nil)
	New(nil, nil).Publish(SubjectHistoryCleared, "v1", nil)
}

func TestPublisher_PublishEnvelope(t *testing.T) {
	js := &fakeJS{}
	New(js, nil).Publish(SubjectHistoryCommitted, "visitor-1", map[string]any{"min": 10, "max": 20})

	if len(js.subjects) != 1 || js.subjects[0] != SubjectHistoryCommitted {
		t.Fatalf("unexpected subjects: %v", js.subjects)
	}
	ev, err := Decode(js.payloads[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.EventID == "" {
		t.Fatal("expected event id")
	}
	if ev.VisitorID != "visitor-1" || ev.EventName != SubjectHistoryCommitted {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestPublisher_ErrorIsSwallowed(t *testing.T) {
	js := &fakeJS{err: errors.New("no stream")}
	New(js, nil).Publish(SubjectSmartSkip, "", nil)
}
