package peerapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/tos-network/nekoyume/block"
	"github.com/tos-network/nekoyume/log"
	"github.com/tos-network/nekoyume/move"
)

// Store is the read surface the HTTP handlers need.
type Store interface {
	Tip() (*block.Block, error)
	BlockByID(id uint64) (*block.Block, error)
	BlocksFrom(from uint64) ([]*block.Block, error)
}

// MoveSink accepts a newly-received move into the mempool, validating
// it first (spec §6 "full serialized move with id and signature").
type MoveSink interface {
	SubmitMove(m *move.Move, sentNode string) error
}

// BlockSink accepts a newly-received block, validating and applying it
// (spec §6 "POST /blocks ... optional sent_node field for loop suppression").
type BlockSink interface {
	SubmitBlock(b *block.Block, sentNode string) error
}

// Server implements the five routes of spec §6 with httprouter.
type Server struct {
	st     Store
	moves  MoveSink
	blocks BlockSink
	router *httprouter.Router
}

// NewServer wires the peer HTTP surface onto st/moves/blocks.
func NewServer(st Store, moves MoveSink, blocks BlockSink) *Server {
	s := &Server{st: st, moves: moves, blocks: blocks, router: httprouter.New()}
	s.router.GET("/blocks/last", s.handleLastBlock)
	s.router.GET("/blocks/:id", s.handleBlockByID)
	s.router.GET("/blocks", s.handleBlocksFrom)
	s.router.POST("/blocks", s.handlePostBlock)
	s.router.POST("/moves", s.handlePostMove)
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("peerapi: encoding response failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	writeJSON(w, map[string]string{"error": err.Error()})
}

func (s *Server) handleLastBlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	tip, err := s.st.Tip()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tip == nil {
		writeJSON(w, map[string]interface{}{"block": nil})
		return
	}
	writeJSON(w, map[string]interface{}{"block": encodeBlock(tip)})
}

func (s *Server) handleBlockByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id, err := strconv.ParseUint(ps.ByName("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := s.st.BlockByID(id)
	if err != nil {
		writeJSON(w, map[string]interface{}{"block": nil})
		return
	}
	writeJSON(w, map[string]interface{}{"block": encodeBlock(b)})
}

func (s *Server) handleBlocksFrom(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	from := uint64(1)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		from = parsed
	}
	blocks, err := s.st.BlocksFrom(from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]wireBlock, len(blocks))
	for i, b := range blocks {
		out[i] = encodeBlock(b)
	}
	writeJSON(w, map[string]interface{}{"blocks": out})
}

func (s *Server) handlePostBlock(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var wb wireBlock
	if err := json.NewDecoder(r.Body).Decode(&wb); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	b, err := decodeBlock(wb)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.blocks.SubmitBlock(b, wb.SentNode); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handlePostMove(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var wm wireMove
	if err := json.NewDecoder(r.Body).Decode(&wm); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := decodeMove(wm)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.moves.SubmitMove(m, wm.SentNode); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, map[string]bool{"ok": true})
}
