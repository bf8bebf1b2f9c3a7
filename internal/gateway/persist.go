package gateway

import (
	"context"
	"encoding/json"
	"log"

	"github.com/gclef-cmu/music-arena/internal/arena"
	"github.com/gclef-cmu/music-arena/internal/store"
)

const battleCollection = "battles"

func contentKeyFor(battleUUID, side string, content []byte, ext string) string {
	return store.ContentKey(battleUUID+"/"+side, content, ext)
}

func (s *Server) persist(ctx context.Context, record *arena.BattleRecord) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return arena.NewInternalError("marshal battle record: " + err.Error())
	}
	return s.docs.Create(ctx, battleCollection, record.UUID, doc)
}

func (s *Server) loadBattle(ctx context.Context, battleUUID string) (*arena.BattleRecord, int, error) {
	doc, version, err := s.docs.Get(ctx, battleCollection, battleUUID)
	if err != nil {
		return nil, 0, err
	}
	var record arena.BattleRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, 0, arena.NewInternalError("unmarshal battle record: " + err.Error())
	}
	return &record, version, nil
}

// updateBattle persists a mutated record under optimistic concurrency.
// On a CAS conflict it logs and returns nil rather than propagating:
// votes are append-mostly, so a lost race is last-writer-wins, not a
// client-visible error.
func (s *Server) updateBattle(ctx context.Context, record *arena.BattleRecord, expectedVersion int) error {
	doc, err := json.Marshal(record)
	if err != nil {
		return arena.NewInternalError("marshal battle record: " + err.Error())
	}
	err = s.docs.Update(ctx, battleCollection, record.UUID, doc, expectedVersion)
	if err != nil {
		if ce := arena.AsCoreError(err); ce.Code == "Conflict" {
			log.Printf("battle %s: vote update lost CAS race, last-writer-wins: %v", record.UUID, err)
			return nil
		}
		return err
	}
	return nil
}
