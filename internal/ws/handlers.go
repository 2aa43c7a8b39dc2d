package ws

import (
	"context"
	"encoding/json"
)

// registerHandlers wires the full client event vocabulary. Position and
// drawing events pass through the rate limiter before they fan out; the
// player's own state is updated immediately either way, so the throttle only
// bounds the broadcast rate, never loses the final state.
func (s *Server) registerHandlers() {
	// ── room lifecycle ──────────────────────────────────────────────────
	Register(s.router, "createLobby", s.CreateLobby)
	Register(s.router, "joinLobby", s.JoinLobby)

	Register(s.router, "buatDiskusi", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		return s.SplitDiscussion(c)
	})
	Register(s.router, "moveToDiskusi", func(_ context.Context, c *Conn, tag string) error {
		return s.MoveToDiscussion(c, tag)
	})
	Register(s.router, "moveRuangan", func(_ context.Context, c *Conn, tag string) error {
		return s.MoveRoom(c, tag)
	})
	Register(s.router, "returnToKelas", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		return s.ReturnToClass(c)
	})

	Register(s.router, "playerList", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		members := room.Members()
		list := make([]PlayerListEntry, 0, len(members))
		for _, m := range members {
			st := m.Player.State()
			list = append(list, PlayerListEntry{Username: st.Username, ID: st.ID})
		}
		c.Emit("playerList", PlayerListBody{Data: list})
		return nil
	})

	// ── presence / movement ─────────────────────────────────────────────
	Register(s.router, "raiseHand", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.broadcast(c, "raiseHand", c.Player.State())
		return nil
	})

	Register(s.router, "globalMute", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.broadcast(c, "globalMute", nil)
		return nil
	})

	Register(s.router, "updatePosition", func(_ context.Context, c *Conn, req PositionUpdate) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		player := c.Player
		player.Update(func(p *PlayerState) { p.Position = req.Position })
		s.throttle.Throttle("position:"+player.ID(), func() {
			if r := c.Room(); r != nil {
				// Snapshot at fire time so a coalesced run carries the
				// latest position, not the one that armed the timer.
				r.broadcast(c, "updatePosition", player.State())
			}
		}, s.opts.PositionWindow)
		return nil
	})

	Register(s.router, "updateKursi", func(_ context.Context, c *Conn, req SeatUpdate) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		c.Player.Update(func(p *PlayerState) {
			if !req.IsSit {
				p.IsSit = SeatNone
			} else {
				p.IsSit = req.IDChair
			}
		})
		room.broadcast(c, "updateKursi", req)
		return nil
	})

	// ── whiteboard ──────────────────────────────────────────────────────
	Register(s.router, "openWhiteboard", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.SetWhiteboardOpen(true)
		c.Emit("openWhiteboard", nil)
		room.broadcast(c, "openWhiteboard", nil)
		return nil
	})

	Register(s.router, "closeWhiteboard", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.SetWhiteboardOpen(false)
		c.Emit("closeWhiteboard", nil)
		room.broadcast(c, "closeWhiteboard", nil)
		return nil
	})

	Register(s.router, "clearWhiteboard", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.SetCanvas(nil)
		c.Emit("clearWhiteboard", nil)
		room.broadcast(c, "clearWhiteboard", nil)
		return nil
	})

	Register(s.router, "drawWhiteboard", func(_ context.Context, c *Conn, data json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		stroke := data
		s.throttle.Throttle("whiteboard:"+c.Player.ID(), func() {
			if r := c.Room(); r != nil {
				r.SetCanvas(stroke)
				r.broadcast(c, "drawWhiteboard", stroke)
			}
		}, s.opts.WhiteboardWindow)
		return nil
	})

	Register(s.router, "showWhiteboard", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		c.Emit("showWhiteboard", room.Canvas())
		return nil
	})

	Register(s.router, "wbChange", func(_ context.Context, c *Conn, id string) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.SetWhiteboardHolder(id)
		body := WBChangeBody{Data: room.WhiteboardHolder()}
		c.Emit("wbChange", body)
		room.broadcast(c, "wbChange", body)
		return nil
	})

	Register(s.router, "checkState", func(_ context.Context, c *Conn, _ json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		c.Emit("checkState", CheckStateBody{Data: room.StateSnapshot()})
		return nil
	})

	Register(s.router, "textWhiteboard", func(_ context.Context, c *Conn, data json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.SetText(data)
		room.broadcast(c, "textWhiteboard", data)
		return nil
	})

	Register(s.router, "shapeWhiteboard", func(_ context.Context, c *Conn, data json.RawMessage) error {
		room := c.Room()
		if room == nil {
			return ErrNotInRoom
		}
		room.SetShape(data)
		room.broadcast(c, "shapeWhiteboard", data)
		return nil
	})

	// ── quiz ────────────────────────────────────────────────────────────
	Register(s.router, "submitSoal", s.SubmitQuestion)
	Register(s.router, "submitJawaban", s.SubmitAnswer)

	// ── book catalog ────────────────────────────────────────────────────
	Register(s.router, "downloadBuku", func(ctx context.Context, c *Conn, id string) error {
		return s.DownloadBook(ctx, c, id)
	})
	Register(s.router, "listBuku", func(ctx context.Context, c *Conn, category string) error {
		return s.ListBooks(ctx, c, category)
	})
	Register(s.router, "searchBuku", func(ctx context.Context, c *Conn, term string) error {
		return s.SearchBooks(ctx, c, term)
	})
}
