package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/recall/internal/index"
)

// Upsert writes the whole batch inside one MULTI/EXEC transaction, so either
// every document becomes visible or none does. Re-using an ID overwrites the
// previous hash at the same key.
func (s *Store) Upsert(ctx context.Context, collection string, docs []index.UpsertDoc) error {
	if collection == "" {
		return fmt.Errorf("collection is required")
	}
	if len(docs) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, 0, len(docs)+2)
	cmds = append(cmds, s.b().Multi().Build())

	for i := range docs {
		doc := &docs[i]
		if doc.ID == "" {
			return fmt.Errorf("document %d: id is required", i)
		}
		if len(doc.Vector) == 0 {
			return fmt.Errorf("document %q: vector is required", doc.ID)
		}

		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("document %q: marshal metadata: %w", doc.ID, err)
		}

		hset := s.b().Hset().Key(docKey(collection, doc.ID)).
			FieldValue().
			FieldValue(fieldText, doc.Text).
			FieldValue(fieldMeta, string(meta)).
			FieldValue(fieldVec, vectorToBytes(doc.Vector))

		// Materialize metadata as plain hash fields so schema-declared
		// filter fields are populated; undeclared ones stay unindexed.
		for k, v := range doc.Metadata {
			if isReservedField(k) {
				continue
			}
			hset = hset.FieldValue(k, v)
		}

		cmds = append(cmds, hset.Build())
	}

	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for _, res := range results {
		if err := res.Error(); err != nil {
			return &index.Error{Op: index.OpUpsert, Err: err}
		}
	}
	return nil
}

func isReservedField(name string) bool {
	return name == fieldVec || strings.HasPrefix(name, "__")
}
