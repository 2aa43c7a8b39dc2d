package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizgamego/internal/storeclient"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // must be < pongWait
	maxMessageSize = 64 * 1024        // whiteboard strokes can get chunky
)

var (
	ErrNotInRoom      = errors.New("not in a room")
	ErrNotInClassRoom = errors.New("not in a class room")
	ErrNotTeacher     = errors.New("only the teacher can manage discussion rooms")
	ErrDiscussionSize = errors.New("class size not supported for discussion split")
	ErrQuizDisabled   = errors.New("quiz is not enabled in this room")
)

// Options tune the coordinator. Zero fields fall back to the defaults the
// clients were built against.
type Options struct {
	ClassCapacity    int
	ConnectionLimit  int
	CreateGraceWait  time.Duration
	PositionWindow   time.Duration
	WhiteboardWindow time.Duration
	CallTimeout      time.Duration
}

func (o Options) withDefaults() Options {
	if o.ClassCapacity == 0 {
		o.ClassCapacity = 37
	}
	if o.ConnectionLimit == 0 {
		o.ConnectionLimit = 50
	}
	if o.PositionWindow == 0 {
		o.PositionWindow = 100 * time.Millisecond
	}
	if o.WhiteboardWindow == 0 {
		o.WhiteboardWindow = 50 * time.Millisecond
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = 10 * time.Second
	}
	return o
}

// Server coordinates sessions: connection admission, room assignment and
// switching, the breakout partitioning, and the bridge to the quiz store.
type Server struct {
	opts     Options
	registry *Registry
	router   *Router
	throttle *RateLimiter

	auth  storeclient.Auth
	quiz  storeclient.QuizStore
	books storeclient.BookStore

	mu          sync.RWMutex
	connections map[string]*Conn
}

func NewServer(
	opts Options,
	auth storeclient.Auth,
	quiz storeclient.QuizStore,
	books storeclient.BookStore,
	relay *RedisRelay,
) *Server {
	opts = opts.withDefaults()

	var rl relayControl
	if relay != nil {
		rl = relay
	}
	srv := &Server{
		opts:        opts,
		registry:    NewRegistry(opts.ConnectionLimit, rl),
		router:      NewRouter(),
		throttle:    NewRateLimiter(),
		auth:        auth,
		quiz:        quiz,
		books:       books,
		connections: make(map[string]*Conn),
	}
	if relay != nil {
		relay.SetDeliver(srv.registry.deliverLocal)
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// Registry exposes the room registry for the monitoring endpoints.
func (s *Server) Registry() *Registry { return s.registry }

// Stats is the live-counter snapshot served on /stats.
type Stats struct {
	Connections  int `json:"connections"`
	Rooms        int `json:"rooms"`
	ThrottleKeys int `json:"throttleKeys"`
}

func (s *Server) Stats() Stats {
	s.mu.RLock()
	conns := len(s.connections)
	s.mu.RUnlock()
	return Stats{
		Connections:  conns,
		Rooms:        s.registry.RoomCount(),
		ThrottleKeys: s.throttle.ActiveKeys(),
	}
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true }, // game clients connect cross-origin
}

func (s *Server) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}

	c := s.Connect(&wsTransport{rawConn: rawConn})

	go s.reader(rawConn, c)
	go s.pinger(rawConn, c)
}

// Connect admits a new transport session: allocates the player, places it
// into the general room and tells the client who it is.
func (s *Server) Connect(t transport) *Conn {
	c := &Conn{sock: t, Player: NewPlayer(), srv: s}

	s.mu.Lock()
	s.connections[c.Player.ID()] = c
	s.mu.Unlock()

	s.registry.EnterGeneral(c)
	p := c.Player.State()
	c.Emit("register", RegisterBody{ID: p.ID, Type: p.Type})

	zap.L().Info("player connected",
		zap.String("playerId", p.ID),
		zap.Int("playerType", p.Type),
	)
	return c
}

// Disconnect tears a session down. It can fire at any point in the
// connection's life, including half-initialized states, so every step is
// guarded.
func (s *Server) Disconnect(c *Conn) {
	if c == nil || c.Player == nil {
		return
	}
	id := c.Player.ID()

	// Flag the teardown and cancel any pending grace placement before the
	// room state changes, so a racing timer cannot re-enter a room.
	c.markClosed()

	s.throttle.Cleanup("position:" + id)
	s.throttle.Cleanup("whiteboard:" + id)

	s.mu.Lock()
	delete(s.connections, id)
	s.mu.Unlock()

	s.registry.Remove(c)

	zap.L().Info("player disconnected", zap.String("playerId", id))
	c.release()
}

// ---------------------------------------------------------------------------
//  Room lifecycle operations
// ---------------------------------------------------------------------------

// CreateLobby authenticates the teacher against the store, then places them
// into their class room — the one they already own if a duplicate request
// raced ahead, a fresh one otherwise. Placement is delayed by a short grace
// period to absorb rapid client retries; a newer request replaces the
// pending one.
func (s *Server) CreateLobby(ctx context.Context, c *Conn, req CreateLobbyRequest) error {
	if req.Name == "" || req.Password == "" {
		c.Emit("gagalLogin", nil)
		return nil
	}

	teacher, err := s.auth.Authenticate(ctx, req.Name, req.Password)
	if err != nil || teacher == nil {
		zap.L().Warn("teacher login failed", zap.String("username", req.Name), zap.Error(err))
		c.Emit("gagalLogin", nil)
		return nil
	}
	c.Emit("suksesLogin", nil)

	c.Player.Update(func(p *PlayerState) {
		p.ServerID = teacher.ID
		p.Username = teacher.Name
		p.Type = RoleTeacher
	})

	if s.opts.CreateGraceWait <= 0 {
		s.placeTeacher(c, teacher.ID)
		return nil
	}
	c.schedulePlacement(s.opts.CreateGraceWait, func() {
		s.placeTeacher(c, teacher.ID)
	})
	return nil
}

func (s *Server) placeTeacher(c *Conn, idGuru int) {
	if c.isClosed() || !s.stillConnected(c) {
		return // disconnected during the grace window
	}
	room, created := s.registry.FindOrCreateClass(idGuru,
		NewClassSettings("Kelas", s.opts.ClassCapacity, idGuru))
	if err := s.registry.Switch(c, room.ID); err != nil {
		if created {
			// The placement lost to a disconnect; don't leave the
			// fresh room behind empty.
			s.registry.Prune(room)
		}
		if errors.Is(err, errConnClosed) {
			return
		}
		zap.L().Error("teacher placement failed",
			zap.String("room", room.ID), zap.Error(err))
		c.Emit("errorPesan", ErrorBody{Message: err.Error()})
	}
}

func (s *Server) stillConnected(c *Conn) bool {
	p := c.playerRef()
	if p == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connections[p.ID()] == c
}

// JoinLobby validates the target room and switches the student in.
func (s *Server) JoinLobby(_ context.Context, c *Conn, req JoinLobbyRequest) error {
	if req.Name == "" || req.IDLobby == "" || req.Type == 0 {
		return errors.New("name, idLobby and type are required")
	}
	room, ok := s.registry.Get(req.IDLobby)
	if !ok {
		return ErrRoomNotFound
	}
	if !room.IsJoinable() {
		return ErrRoomNotJoinable
	}
	if !room.CanAdmit(c) {
		return ErrRoomFull
	}
	c.Player.Update(func(p *PlayerState) {
		p.Type = req.Type
		p.Username = req.Name
	})
	return s.registry.Switch(c, req.IDLobby)
}

// ---------------------------------------------------------------------------
//  Discussion (breakout) bookkeeping
// ---------------------------------------------------------------------------

// discussionGroups maps the non-teacher member count to the sub-group count.
// Rooms above 36 students are a configuration limit, rejected explicitly.
func discussionGroups(playerCount int) int {
	switch {
	case playerCount >= 1 && playerCount <= 6:
		return 1
	case playerCount <= 12:
		return 2
	case playerCount <= 18:
		return 3
	case playerCount <= 24:
		return 4
	case playerCount <= 30:
		return 5
	case playerCount <= 36:
		return 6
	default:
		return 0
	}
}

// SplitDiscussion partitions the students round-robin over N breakout tags
// derived from the class size, pinning the teacher alone to sub-group 0, and
// broadcasts the assignment table. Connections stay in the class room; the
// tags only steer client-side filtering.
func (s *Server) SplitDiscussion(c *Conn) error {
	room := c.Room()
	if room == nil || !room.IsClass() {
		return ErrNotInClassRoom
	}
	if c.Player.State().Type != RoleTeacher {
		return ErrNotTeacher
	}

	members := room.Members()
	if len(members) <= 1 {
		return ErrDiscussionSize
	}
	groups := discussionGroups(len(members) - 1)
	if groups == 0 {
		return ErrDiscussionSize
	}

	room.markDiscussion(groups)

	table := make([]DiscussionAssignment, 0, len(members))
	next := 1
	for _, m := range members {
		tag := room.ID + "-0"
		if m != c {
			tag = fmt.Sprintf("%s-%d", room.ID, next)
			next++
			if next > groups {
				next = 1
			}
		}
		m.Player.Update(func(p *PlayerState) {
			p.Diskusi = tag
			p.IsSit = SeatNone
		})
		table = append(table, DiscussionAssignment{IDServer: tag, IDPlayer: m.Player.ID()})
	}

	body := DiscussionTable{Hasil: table, PembagianDiskusi: groups}
	c.Emit("buatDiskusi", body)
	room.broadcast(c, "buatDiskusi", body)
	return nil
}

// MoveToDiscussion reassigns the caller's breakout tag.
func (s *Server) MoveToDiscussion(c *Conn, tag string) error {
	room := c.Room()
	if room == nil {
		return ErrNotInRoom
	}
	c.Player.Update(func(p *PlayerState) { p.Diskusi = tag })
	room.broadcast(c, "moveToDiskusi", DiscussionAssignment{
		IDServer: tag,
		IDPlayer: c.Player.ID(),
	})
	return nil
}

// MoveRoom reassigns the caller's tag and replies with a snapshot of every
// member's tag, position and seat, so the mover can rebuild its view.
func (s *Server) MoveRoom(c *Conn, tag string) error {
	room := c.Room()
	if room == nil {
		return ErrNotInRoom
	}
	c.Player.Update(func(p *PlayerState) { p.Diskusi = tag })

	members := room.Members()
	hasil := make([]MemberState, 0, len(members))
	for _, m := range members {
		st := m.Player.State()
		hasil = append(hasil, MemberState{
			IDServer: st.Diskusi,
			IDPlayer: st.ID,
			Position: st.Position,
			IsSit:    st.IsSit,
		})
	}
	c.Emit("moveRuangan", RoomSnapshot{Hasil: hasil})
	room.broadcast(c, "moveToDiskusi", DiscussionAssignment{
		IDServer: tag,
		IDPlayer: c.Player.ID(),
	})
	return nil
}

// ReturnToClass reverses the discussion flags and announces the restoration.
func (s *Server) ReturnToClass(c *Conn) error {
	room := c.Room()
	if room == nil || !room.IsClass() {
		return ErrNotInClassRoom
	}
	room.restoreClass()

	body := ReturnClassBody{IDKelas: room.ID}
	c.Emit("returnToKelas", body)
	room.broadcast(c, "returnToKelas", body)
	return nil
}

// ---------------------------------------------------------------------------
//  Quiz relay
// ---------------------------------------------------------------------------

// SubmitQuestion validates the question, relays it to the quiz store and
// broadcasts it, with the assigned code, to the rest of the room. Gated by
// the room's quiz flag.
func (s *Server) SubmitQuestion(ctx context.Context, c *Conn, req QuestionSubmission) error {
	room := c.Room()
	if room == nil || !room.QuizEnabled() {
		return ErrQuizDisabled
	}

	q := storeclient.Question{Question: req.Soal, Type: req.JenisSoal, Timer: req.Timer}
	switch req.JenisSoal {
	case "pilgan":
		if req.Soal == "" || req.JawabanA == "" || req.JawabanB == "" ||
			req.JawabanC == "" || req.JawabanD == "" || req.Opsi == nil || req.Timer == 0 {
			return errors.New("missing required fields for multiple choice question")
		}
		q.Options = []string{req.JawabanA, req.JawabanB, req.JawabanC, req.JawabanD}
		q.CorrectAnswer = *req.Opsi // 1-based, as sent by the game client
	case "essay":
		if req.Soal == "" || req.Timer == 0 {
			return errors.New("missing required fields for essay question")
		}
	default:
		return errors.New("unknown question type")
	}

	sender := c.Player.State()
	req.IDLobby = room.ID
	req.NamaGuru = sender.Username
	req.ServerID = sender.ServerID

	title := []rune(req.Soal)
	if len(title) > 50 {
		title = title[:50]
	}
	quiz := storeclient.Quiz{
		ServerID:  req.ServerID,
		NamaGuru:  req.NamaGuru,
		IDLobby:   req.IDLobby,
		Title:     fmt.Sprintf("Quiz - %s...", string(title)),
		Questions: []storeclient.Question{q},
	}

	code, err := s.quiz.SubmitQuestion(ctx, quiz)
	if err != nil {
		zap.L().Error("question submit failed",
			zap.String("room", room.ID), zap.Error(err))
		return errors.New("Failed to submit question")
	}

	req.KodeSoal = code
	room.broadcast(c, "submitSoal", req)
	return nil
}

// SubmitAnswer maps the client's answer fields to store format and relays
// it. Failures reach the caller only.
func (s *Server) SubmitAnswer(ctx context.Context, c *Conn, req AnswerSubmission) error {
	room := c.Room()
	if room == nil {
		return ErrNotInRoom
	}
	code := req.KodeSoal
	if code == "" {
		code = req.ID
	}
	if code == "" {
		return errors.New("kodeSoal is required")
	}

	var item storeclient.AnswerItem
	switch {
	case req.IndexJawaban != nil:
		item.SelectedAnswer = req.IndexJawaban
	case req.Jawaban != "":
		item.EssayAnswer = req.Jawaban
	default:
		item.EssayAnswer = "Siswa Tidak Menjawab"
	}

	answer := storeclient.Answer{
		KodeSoal:  code,
		NamaSiswa: c.Player.State().Username,
		IDLobby:   room.ID,
		Jawaban:   []storeclient.AnswerItem{item},
	}
	if _, err := s.quiz.SubmitAnswer(ctx, answer); err != nil {
		zap.L().Error("answer submit failed",
			zap.String("room", room.ID), zap.Error(err))
		return errors.New("Failed to submit answer")
	}
	return nil
}

// ---------------------------------------------------------------------------
//  Book catalog relay
// ---------------------------------------------------------------------------

type bookLinkBody struct {
	LinkBuku string `json:"linkBuku"`
}

type bookSearchBody struct {
	DaftarBuku []storeclient.Book `json:"daftarBuku"`
}

func (s *Server) DownloadBook(ctx context.Context, c *Conn, id string) error {
	link, err := s.books.Lookup(ctx, id)
	if err != nil {
		zap.L().Warn("book lookup failed", zap.String("book", id), zap.Error(err))
		return errors.New("Failed to fetch book")
	}
	c.Emit("downloadBuku", bookLinkBody{LinkBuku: link})
	return nil
}

func (s *Server) ListBooks(ctx context.Context, c *Conn, category string) error {
	books, err := s.books.List(ctx, category)
	if err != nil {
		zap.L().Warn("book list failed", zap.String("category", category), zap.Error(err))
		return errors.New("Failed to list books")
	}
	c.Emit("listBuku", books)
	return nil
}

func (s *Server) SearchBooks(ctx context.Context, c *Conn, term string) error {
	books, err := s.books.Search(ctx, term)
	if err != nil {
		zap.L().Warn("book search failed", zap.String("term", term), zap.Error(err))
		return errors.New("Failed to search books")
	}
	c.Emit("searchBuku", bookSearchBody{DaftarBuku: books})
	return nil
}

// ---------------------------------------------------------------------------
//  Socket plumbing
// ---------------------------------------------------------------------------

func (s *Server) reader(rawConn *websocket.Conn, c *Conn) {
	defer func() {
		s.Disconnect(c)
		rawConn.Close()
	}()

	rawConn.SetReadLimit(maxMessageSize)
	_ = rawConn.SetReadDeadline(time.Now().Add(pongWait))
	rawConn.SetPongHandler(func(string) error {
		return rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := rawConn.ReadJSON(&env); err != nil {
			return // client closed or errored
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.opts.CallTimeout)
		err := s.router.dispatch(ctx, c, env)
		cancel()

		if err != nil {
			c.Emit("errorPesan", ErrorBody{Message: err.Error()})
		}
	}
}

func (s *Server) pinger(rawConn *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		sock := c.sock
		c.mu.Unlock()
		if sock == nil {
			return // session torn down
		}
		if err := sock.Ping(); err != nil {
			rawConn.Close()
			return
		}
	}
}
