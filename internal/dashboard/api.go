// Package dashboard serves the ledger over HTTP: a JSON API, a live websocket
// feed of committed events and a small HTML page.
package dashboard

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/jaakkos/dao-ledger/internal/app"
	"github.com/jaakkos/dao-ledger/internal/domain"
)

// StateSnapshot is the JSON response from /api/state.
type StateSnapshot struct {
	Timestamp string          `json:"timestamp"`
	Summary   app.Summary     `json:"summary"`
	Ledger    domain.Snapshot `json:"ledger"`
}

// VoterSnapshot is the JSON response from /api/voters/:id.
type VoterSnapshot struct {
	Voter    string   `json:"voter"`
	Name     string   `json:"name"`
	Eligible bool     `json:"eligible"`
	VotedOn  []uint64 `json:"voted_on"`
}

// ConclusionSnapshot is the JSON response from /api/conclusion.
type ConclusionSnapshot struct {
	Concluded bool          `json:"concluded"`
	Winner    *domain.Tally `json:"winner,omitempty"`
}

// VoteResponse is the JSON response from POST /api/votes.
type VoteResponse struct {
	Outcome domain.VoteOutcome `json:"outcome"`
	Counted bool               `json:"counted"`
}

type registerVoterRequest struct {
	Voter string `json:"voter" binding:"required"`
	Name  string `json:"name"`
}

type registerProposalRequest struct {
	ID          *uint64 `json:"id" binding:"required"`
	Description string  `json:"description"`
}

type voteRequest struct {
	Voter      string  `json:"voter" binding:"required"`
	ProposalID *uint64 `json:"proposal_id" binding:"required"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler holds dependencies for dashboard HTTP handlers.
type Handler struct {
	svc    *app.VotingService
	hub    *Hub // optional; /ws is not served without it
	logger *log.Logger
}

// HandlerOption configures optional dependencies for the dashboard handler.
type HandlerOption func(*Handler)

// WithHub enables the /ws live feed.
func WithHub(hub *Hub) HandlerOption {
	return func(h *Handler) { h.hub = hub }
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *log.Logger) HandlerOption {
	return func(h *Handler) { h.logger = logger }
}

// NewHandler creates a dashboard handler.
func NewHandler(svc *app.VotingService, opts ...HandlerOption) *Handler {
	h := &Handler{svc: svc}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = log.New(io.Discard, "", 0)
	}
	return h
}

// RegisterRoutes adds dashboard routes to r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	api := r.Group("/api")
	api.Use(noCache)
	api.GET("/state", h.handleState)
	api.GET("/summary", h.handleSummary)
	api.GET("/proposals", h.handleProposals)
	api.POST("/proposals", h.handleRegisterProposal)
	api.GET("/tally", h.handleTally)
	api.GET("/conclusion", h.handleConclusion)
	api.POST("/voters", h.handleRegisterVoter)
	api.GET("/voters/:id", h.handleVoter)
	api.DELETE("/voters/:id", h.handleRemoveVoter)
	api.POST("/votes", h.handleVote)

	if h.hub != nil {
		r.GET("/ws", h.handleWebsocket)
	}
	r.GET("/dashboard", h.handleDashboard)
}

// NewRouter returns a gin engine with recovery, request logging to logger and
// the dashboard routes.
func NewRouter(h *Handler, logger *log.Logger) *gin.Engine {
	r := gin.New()
	if logger != nil {
		r.Use(gin.LoggerWithWriter(logger.Writer()))
	}
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

func noCache(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Cache-Control", "no-cache")
	c.Next()
}

func (h *Handler) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, StateSnapshot{
		Timestamp: time.Now().Format(time.RFC3339),
		Summary:   h.svc.Summary(),
		Ledger:    h.svc.Snapshot(),
	})
}

func (h *Handler) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Summary())
}

func (h *Handler) handleProposals(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Proposals())
}

func (h *Handler) handleTally(c *gin.Context) {
	counts := h.svc.VoteCounts()
	tallies := make([]domain.Tally, 0, len(counts))
	for id, n := range counts {
		tallies = append(tallies, domain.Tally{ProposalID: id, Votes: n})
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].ProposalID < tallies[j].ProposalID })
	c.JSON(http.StatusOK, tallies)
}

func (h *Handler) handleConclusion(c *gin.Context) {
	leader, ok := h.svc.ConcludeVoting()
	if !ok {
		c.JSON(http.StatusOK, ConclusionSnapshot{})
		return
	}
	c.JSON(http.StatusOK, ConclusionSnapshot{Concluded: true, Winner: &leader})
}

func (h *Handler) handleVoter(c *gin.Context) {
	id, ok := parseActorParam(c)
	if !ok {
		return
	}
	info, votedOn, found := h.svc.VoterHistory(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "voter " + id.String() + " is not registered"})
		return
	}
	c.JSON(http.StatusOK, VoterSnapshot{Voter: id.String(), Name: info.Name, Eligible: info.Eligible, VotedOn: votedOn})
}

func (h *Handler) handleRegisterVoter(c *gin.Context) {
	var req registerVoterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := domain.ParseActorID(req.Voter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.RegisterVoter(c.Request.Context(), id, req.Name); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"voter": id.String(), "name": req.Name})
}

func (h *Handler) handleRemoveVoter(c *gin.Context) {
	id, ok := parseActorParam(c)
	if !ok {
		return
	}
	if err := h.svc.RemoveVoter(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) handleRegisterProposal(c *gin.Context) {
	var req registerProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.RegisterProposal(c.Request.Context(), *req.ID, req.Description); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, domain.Proposal{ID: *req.ID, Description: req.Description})
}

func (h *Handler) handleVote(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := domain.ParseActorID(req.Voter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	outcome, err := h.svc.Vote(c.Request.Context(), id, *req.ProposalID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, VoteResponse{Outcome: outcome, Counted: outcome.Accepted()})
}

func (h *Handler) handleWebsocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Printf("Dashboard: websocket upgrade: %v", err)
		return
	}
	client := NewWebsocketClient(conn)

	sum := h.svc.Summary()
	greeting, _ := json.Marshal(Message{Type: "summary", Summary: &sum})
	if err := h.hub.Register(client, greeting); err != nil {
		_ = client.Close()
		return
	}
	defer h.hub.Unregister(client)

	// Keep the connection alive until the client goes away.
	for {
		if _, _, err := client.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	h.logger.Printf("Dashboard: %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseActorParam(c *gin.Context) (domain.ActorID, bool) {
	id, err := domain.ParseActorID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.ActorID{}, false
	}
	return id, true
}
