package ws

import (
	"context"
	"encoding/json"
	"sync"

	"quizgamego/internal/storeclient"
)

// recordedFrame is one server→client frame as it would appear on the wire.
// Bodies are marshaled at write time so later mutation of shared state does
// not rewrite history.
type recordedFrame struct {
	Event string          `json:"event"`
	Body  json.RawMessage `json:"body"`
}

type fakeTransport struct {
	mu     sync.Mutex
	frames []recordedFrame
	closed bool
}

func (t *fakeTransport) WriteJSON(v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var f recordedFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return err
	}
	t.mu.Lock()
	t.frames = append(t.frames, f)
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) Ping() error { return nil }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) count(event string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, f := range t.frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

func (t *fakeTransport) last(event string) (recordedFrame, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.frames) - 1; i >= 0; i-- {
		if t.frames[i].Event == event {
			return t.frames[i], true
		}
	}
	return recordedFrame{}, false
}

func (t *fakeTransport) decodeLast(event string, out any) bool {
	f, ok := t.last(event)
	if !ok {
		return false
	}
	return json.Unmarshal(f.Body, out) == nil
}

// fakeStore implements all three store interfaces in memory.
type fakeStore struct {
	mu sync.Mutex

	teacher *storeclient.TeacherIdentity
	authErr error

	code    string
	quizErr error
	quizzes []storeclient.Quiz

	answerID  string
	answerErr error
	answers   []storeclient.Answer

	link     string
	books    []storeclient.Book
	booksErr error
}

func (f *fakeStore) Authenticate(_ context.Context, _, _ string) (*storeclient.TeacherIdentity, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.teacher, nil
}

func (f *fakeStore) SubmitQuestion(_ context.Context, quiz storeclient.Quiz) (string, error) {
	if f.quizErr != nil {
		return "", f.quizErr
	}
	f.mu.Lock()
	f.quizzes = append(f.quizzes, quiz)
	f.mu.Unlock()
	return f.code, nil
}

func (f *fakeStore) SubmitAnswer(_ context.Context, answer storeclient.Answer) (string, error) {
	if f.answerErr != nil {
		return "", f.answerErr
	}
	f.mu.Lock()
	f.answers = append(f.answers, answer)
	f.mu.Unlock()
	return f.answerID, nil
}

func (f *fakeStore) Lookup(_ context.Context, _ string) (string, error) {
	if f.booksErr != nil {
		return "", f.booksErr
	}
	return f.link, nil
}

func (f *fakeStore) List(_ context.Context, _ string) ([]storeclient.Book, error) {
	return f.books, f.booksErr
}

func (f *fakeStore) Search(_ context.Context, _ string) ([]storeclient.Book, error) {
	return f.books, f.booksErr
}

// newTestServer builds a server with synchronous lobby placement and the
// given fake store behind all three interfaces.
func newTestServer(opts Options, fs *fakeStore) *Server {
	return NewServer(opts, fs, fs, fs, nil)
}

// connectPlayer admits one fake session.
func connectPlayer(s *Server) (*Conn, *fakeTransport) {
	ft := &fakeTransport{}
	c := s.Connect(ft)
	return c, ft
}

// dispatch pushes one inbound frame through the event router, the way the
// reader loop would.
func dispatch(s *Server, c *Conn, event string, body any) error {
	var raw json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = b
	}
	return s.router.dispatch(context.Background(), c, Envelope{Event: event, Body: raw})
}
