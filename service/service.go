package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/calehh/phishgov/indexer"
	"github.com/calehh/phishgov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxCheckValues = 1000

// normalizeAddress turns a hex address in any case into the checksummed form the mirror
// stores. Empty stays empty.
func normalizeAddress(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s).Hex(), nil
}

type Service struct {
	logger     cmtlog.Logger
	engine     *gin.Engine
	indexer    *indexer.ChainIndexer
	listenAddr string
	srv        *http.Server
}

func NewService(logger cmtlog.Logger, listenAddr string, idx *indexer.ChainIndexer, gatherer prometheus.Gatherer) *Service {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		logger:     logger.With("module", "service"),
		engine:     r,
		indexer:    idx,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.POST("/getBlacklist", s.handleGetBlacklist)
	s.engine.POST("/checkBlacklist", s.handleCheckBlacklist)
	s.engine.GET("/status", s.handleStatus)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

// Start serves until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.srv = &http.Server{Addr: s.listenAddr, Handler: s.engine}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("service listen", "addr", s.listenAddr)
		errc <- s.srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("service shutdown fail", "err", err)
		}
		return ctx.Err()
	}
}

type GetProposalsReq struct {
	ProposalId uint64 `json:"proposalId"`
	Proposer   string `json:"proposer"`
	Status     *uint8 `json:"status"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetProposalResponse struct {
	Proposals []indexer.Proposal `json:"proposals"`
	Total     uint64             `json:"total"`
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var response GetProposalResponse
	response.Proposals = make([]indexer.Proposal, 0)
	var requestData GetProposalsReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if requestData.ProposalId != 0 {
		proposal, err := s.indexer.GetProposalById(requestData.ProposalId)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, response)
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		response.Proposals = append(response.Proposals, *proposal)
		response.Total = 1
		c.JSON(http.StatusOK, response)
		return
	}

	proposer, err := normalizeAddress(requestData.Proposer)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := indexer.ProposalFilter{Proposer: proposer, Status: requestData.Status}
	proposals, total, err := s.indexer.GetProposals(filter, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	response.Proposals = proposals
	response.Total = total
	c.JSON(http.StatusOK, response)
}

type GetVotesReq struct {
	ProposalId uint64 `json:"proposalId"`
	Voter      string `json:"voter"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []indexer.Vote `json:"votes"`
	Total uint64         `json:"total"`
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var requestData GetVotesReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if requestData.ProposalId == 0 && requestData.Voter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proposalId or voter is required"})
		return
	}
	voter, err := normalizeAddress(requestData.Voter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	votes, total, err := s.indexer.GetVotes(requestData.ProposalId, voter, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes, Total: total})
}

type GetBlacklistReq struct {
	Type     string `json:"type"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetBlacklistResponse struct {
	Entries []indexer.BlacklistEntry `json:"entries"`
	Total   uint64                   `json:"total"`
}

func (s *Service) handleGetBlacklist(c *gin.Context) {
	var requestData GetBlacklistReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	et, err := types.ParseEntryType(requestData.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	entries, total, err := s.indexer.GetBlacklist(et, requestData.Page, requestData.PageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, GetBlacklistResponse{Entries: entries, Total: total})
}

type CheckBlacklistReq struct {
	Type   string   `json:"type"`
	Values []string `json:"values"`
}

type CheckBlacklistResponse struct {
	Results []bool `json:"results"`
	Height  uint64 `json:"height"`
}

func (s *Service) handleCheckBlacklist(c *gin.Context) {
	var requestData CheckBlacklistReq
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	et, err := types.ParseEntryType(requestData.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(requestData.Values) > maxCheckValues {
		c.JSON(http.StatusBadRequest, gin.H{"error": "too many values"})
		return
	}
	height, err := s.indexer.Checkpoint()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	results, err := s.indexer.CheckBlacklist(et, requestData.Values)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, CheckBlacklistResponse{Results: results, Height: height})
}

type StatusResponse struct {
	Height     uint64             `json:"height"`
	Governance *indexer.Governance `json:"governance"`
}

func (s *Service) handleStatus(c *gin.Context) {
	height, err := s.indexer.Checkpoint()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	gov, err := s.indexer.GetGovernance()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{Height: height, Governance: gov})
}
