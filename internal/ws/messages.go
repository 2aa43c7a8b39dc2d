package ws

import "encoding/json"

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "joinLobby"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// outEnvelope is the server→client frame shape.
type outEnvelope struct {
	Event string `json:"event"`
	Body  any    `json:"body,omitempty"`
}

// ErrorBody is the payload of "errorPesan".
type ErrorBody struct {
	Message string `json:"message,omitempty"`
}

// RegisterBody is sent right after the transport connects.
type RegisterBody struct {
	ID   string `json:"id"`
	Type int    `json:"type"`
}

// ──────────────────────────── Request DTOs ───────────────────────────────────

// CreateLobbyRequest is the body for "createLobby". Name/Password are the
// teacher's store credentials.
type CreateLobbyRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// JoinLobbyRequest is the body for "joinLobby".
type JoinLobbyRequest struct {
	Name    string `json:"name"`
	IDLobby string `json:"idLobby"`
	Type    int    `json:"type"`
}

// PositionUpdate is the body for "updatePosition".
type PositionUpdate struct {
	Position Vector2 `json:"position"`
}

// SeatUpdate is the body for "updateKursi".
type SeatUpdate struct {
	IsSit   bool   `json:"isSit"`
	IDChair string `json:"idChair"`
}

// QuestionSubmission is the body for "submitSoal". The lobby/teacher fields
// are filled in server-side before the broadcast.
type QuestionSubmission struct {
	JenisSoal string `json:"jenisSoal"`
	Soal      string `json:"soal"`
	Timer     int    `json:"timer"`
	JawabanA  string `json:"jawabana,omitempty"`
	JawabanB  string `json:"jawabanb,omitempty"`
	JawabanC  string `json:"jawabanc,omitempty"`
	JawabanD  string `json:"jawaband,omitempty"`
	Opsi      *int   `json:"opsi,omitempty"`

	IDLobby  string `json:"idLobby,omitempty"`
	NamaGuru string `json:"namaGuru,omitempty"`
	ServerID int    `json:"serverID,omitempty"`
	KodeSoal string `json:"kodeSoal,omitempty"`
}

// AnswerSubmission is the body for "submitJawaban". Older clients send the
// question code as "id" instead of "kodeSoal".
type AnswerSubmission struct {
	ID           string `json:"id,omitempty"`
	KodeSoal     string `json:"kodeSoal,omitempty"`
	IndexJawaban *int   `json:"indexJawaban,omitempty"`
	Jawaban      string `json:"jawaban,omitempty"`
}

// ──────────────────────────── Broadcast DTOs ─────────────────────────────────

// SpawnBody describes a player to the rest of a room.
type SpawnBody struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     int     `json:"type"`
	IDLobby  string  `json:"idLobby"`
	ServerID int     `json:"serverID"`
	Position Vector2 `json:"position"`
	IsSit    string  `json:"isSit"`
}

// DisconnectedBody announces a departure to the remaining members.
type DisconnectedBody struct {
	ID string `json:"id"`
}

// DiscussionAssignment maps one player to a breakout tag.
type DiscussionAssignment struct {
	IDServer string `json:"idServer"`
	IDPlayer string `json:"idPlayer"`
}

// DiscussionTable is the full breakout assignment broadcast on "buatDiskusi".
type DiscussionTable struct {
	Hasil            []DiscussionAssignment `json:"hasil"`
	PembagianDiskusi int                    `json:"pembagianDiskusi"`
}

// MemberState is one row of the "moveRuangan" snapshot.
type MemberState struct {
	IDServer string  `json:"idServer"`
	IDPlayer string  `json:"idPlayer"`
	Position Vector2 `json:"position"`
	IsSit    string  `json:"isSit"`
}

// RoomSnapshot is the "moveRuangan" reply payload.
type RoomSnapshot struct {
	Hasil []MemberState `json:"hasil"`
}

// ReturnClassBody announces the end of a discussion split.
type ReturnClassBody struct {
	IDKelas string `json:"idKelas"`
}

// WBChangeBody carries the new whiteboard privilege holder.
type WBChangeBody struct {
	Data string `json:"data"`
}

// CheckStateBody wraps the whiteboard snapshot for "checkState".
type CheckStateBody struct {
	Data WhiteboardState `json:"data"`
}

// PlayerListBody wraps the "playerList" reply.
type PlayerListBody struct {
	Data []PlayerListEntry `json:"data"`
}

// WhiteboardState is the "checkState" reply payload.
type WhiteboardState struct {
	Whiteboard     int             `json:"whiteboard"`
	WhiteboardID   string          `json:"whiteboardID"`
	WhiteboardData json.RawMessage `json:"whiteboardData,omitempty"`
	ShapeData      json.RawMessage `json:"shapeData,omitempty"`
	TextData       json.RawMessage `json:"textData,omitempty"`
}

// PlayerListEntry is one row of the "playerList" reply.
type PlayerListEntry struct {
	Username string `json:"username"`
	ID       string `json:"id"`
}
