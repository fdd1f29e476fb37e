package entry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"complyd/internal/audit"
	id "complyd/pkg/domain"
	"complyd/pkg/platform/sentinel"
)

type EntryStoreSuite struct {
	suite.Suite
	store    *Memory
	ctx      context.Context
	tenantID id.TenantID
}

func (s *EntryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.ctx = context.Background()
	s.tenantID = id.NewTenantID()
}

func TestEntryStoreSuite(t *testing.T) {
	suite.Run(t, new(EntryStoreSuite))
}

func (s *EntryStoreSuite) insertChain(tenantID id.TenantID, n int) []*audit.Entry {
	entries := make([]*audit.Entry, 0, n)
	var prev *audit.Entry
	base := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		eventType := audit.EventApplicantCreated
		if i%2 == 1 {
			eventType = audit.EventCaseResolved
		}
		e := audit.NewEntry(tenantID, eventType, json.RawMessage(`{"k":"v"}`), "tester", base.Add(time.Duration(i)*time.Second), prev)
		s.Require().NoError(s.store.Insert(s.ctx, e))
		entries = append(entries, e)
		prev = e
	}
	return entries
}

func (s *EntryStoreSuite) TestInsert() {
	s.Run("accepts sequential entries", func() {
		s.insertChain(s.tenantID, 3)

		count, err := s.store.Count(s.ctx, s.tenantID)
		s.Require().NoError(err)
		s.Equal(int64(3), count)
	})

	s.Run("rejects duplicate sequence", func() {
		tenantID := id.NewTenantID()
		chain := s.insertChain(tenantID, 2)

		dup := *chain[1]
		dup.ID = id.NewEntryID()
		err := s.store.Insert(s.ctx, &dup)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("same sequence is fine across tenants", func() {
		s.insertChain(id.NewTenantID(), 1)
		s.insertChain(id.NewTenantID(), 1)
	})
}

func (s *EntryStoreSuite) TestLatest() {
	s.Run("returns ErrNotFound for empty chain", func() {
		_, err := s.store.Latest(s.ctx, id.NewTenantID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns the highest sequence", func() {
		tenantID := id.NewTenantID()
		chain := s.insertChain(tenantID, 4)

		head, err := s.store.Latest(s.ctx, tenantID)
		s.Require().NoError(err)
		s.Equal(chain[3].Sequence, head.Sequence)
		s.Equal(chain[3].Checksum, head.Checksum)
	})
}

func (s *EntryStoreSuite) TestList() {
	tenantID := id.NewTenantID()
	s.insertChain(tenantID, 6)

	s.Run("lists in ascending sequence order", func() {
		entries, err := s.store.List(s.ctx, tenantID, audit.ListFilter{})
		s.Require().NoError(err)
		s.Require().Len(entries, 6)
		for i, e := range entries {
			s.Equal(int64(i), e.Sequence)
		}
	})

	s.Run("filters by event type", func() {
		entries, err := s.store.List(s.ctx, tenantID, audit.ListFilter{EventType: audit.EventCaseResolved})
		s.Require().NoError(err)
		s.Len(entries, 3)
	})

	s.Run("applies offset and limit", func() {
		entries, err := s.store.List(s.ctx, tenantID, audit.ListFilter{Offset: 2, Limit: 2})
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(int64(2), entries[0].Sequence)
		s.Equal(int64(3), entries[1].Sequence)
	})

	s.Run("offset past the end returns empty", func() {
		entries, err := s.store.List(s.ctx, tenantID, audit.ListFilter{Offset: 100})
		s.Require().NoError(err)
		s.Empty(entries)
	})

	s.Run("returned entries are copies", func() {
		entries, err := s.store.List(s.ctx, tenantID, audit.ListFilter{Limit: 1})
		s.Require().NoError(err)
		entries[0].Payload = json.RawMessage(`{"k":"tampered"}`)

		again, err := s.store.List(s.ctx, tenantID, audit.ListFilter{Limit: 1})
		s.Require().NoError(err)
		s.JSONEq(`{"k":"v"}`, string(again[0].Payload))
	})
}
