package indexer

import (
	"github.com/calehh/phishgov/blacklist"
	"github.com/calehh/phishgov/types"
	"github.com/jinzhu/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 1000
)

func paginate(db *gorm.DB, page, pageSize int) *gorm.DB {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return db.Offset(page * pageSize).Limit(pageSize)
}

type ProposalFilter struct {
	Proposer string
	Status   *uint8
}

func (c *ChainIndexer) Checkpoint() (uint64, error) {
	var h Height
	err := c.db.Where("id = ?", 1).First(&h).Error
	if err != nil && !gorm.IsRecordNotFoundError(err) {
		return 0, err
	}
	return h.Height, nil
}

func (c *ChainIndexer) GetProposalById(id uint64) (*Proposal, error) {
	var proposal Proposal
	err := c.db.Where("id = ?", id).First(&proposal).Error
	if err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (c *ChainIndexer) GetProposals(filter ProposalFilter, page, pageSize int) ([]Proposal, uint64, error) {
	q := c.db.Model(&Proposal{})
	if filter.Proposer != "" {
		q = q.Where("proposer = ?", filter.Proposer)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	proposals := make([]Proposal, 0)
	if err := paginate(q.Order("id desc"), page, pageSize).Find(&proposals).Error; err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) GetVotes(proposalId uint64, voter string, page, pageSize int) ([]Vote, uint64, error) {
	q := c.db.Model(&Vote{})
	if proposalId != 0 {
		q = q.Where("proposal_id = ?", proposalId)
	}
	if voter != "" {
		q = q.Where("voter = ?", voter)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	votes := make([]Vote, 0)
	if err := paginate(q.Order("proposal_id desc, height asc"), page, pageSize).Find(&votes).Error; err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

// GetBlacklist lists active entries of one type, newest first.
func (c *ChainIndexer) GetBlacklist(et types.EntryType, page, pageSize int) ([]BlacklistEntry, uint64, error) {
	q := c.db.Model(&BlacklistEntry{}).Where("entry_type = ? AND active = ?", uint8(et), true)
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	entries := make([]BlacklistEntry, 0)
	if err := paginate(q.Order("height desc"), page, pageSize).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CheckBlacklist answers in input order; values that do not normalise are reported false.
func (c *ChainIndexer) CheckBlacklist(et types.EntryType, values []string) ([]bool, error) {
	res := make([]bool, len(values))
	keys := make([]string, 0, len(values))
	idx := make(map[string][]int, len(values))
	for i, v := range values {
		nv, err := blacklist.NormalizeValue(et, v)
		if err != nil {
			continue
		}
		key := entryKey(et, nv)
		if _, ok := idx[key]; !ok {
			keys = append(keys, key)
		}
		idx[key] = append(idx[key], i)
	}
	if len(keys) == 0 {
		return res, nil
	}
	var found []BlacklistEntry
	if err := c.db.Where("entry_key IN (?) AND active = ?", keys, true).Find(&found).Error; err != nil {
		return nil, err
	}
	for _, e := range found {
		for _, i := range idx[e.EntryKey] {
			res[i] = true
		}
	}
	return res, nil
}

func (c *ChainIndexer) GetGovernance() (*Governance, error) {
	g, err := loadGovernance(c.db)
	if err != nil {
		return nil, err
	}
	return g, nil
}
