// Package recall embeds the retrieval store directly into a Go program:
// multi-tenant document collections with vector search and optional
// keyword-aware reranking, backed by Redis, bbolt, or process memory.
//
// # Low-level API — explicit control
//
//	client, _ := recall.New(
//	    recall.WithRedis("localhost:6379", ""),
//	    recall.WithEmbedder(emb),
//	)
//	coll, _ := client.Collection(ctx, "acme", "faq")
//	ids, _ := coll.AddDocuments(ctx, docs)
//	results, _ := coll.Search(ctx, "business hours", &recall.SearchOptions{Hybrid: true})
//
// # High-level API — schema-first with Go generics
//
//	type Note struct {
//	    ID    string `recall:"id,id"`
//	    Text  string `recall:"text,text"`
//	    Topic string `recall:"topic"`
//	}
//
//	idx, _ := recall.NewIndex[Note](client, "acme", "notes")
//	_ = idx.Ensure(ctx)
//	_, _ = idx.Add(ctx, notes...)
//	hits, _ := idx.Search().Query("printer").Hybrid().TopK(5).Do(ctx)
//
// Every document written through a collection handle is stamped with the
// collection's tenant tag, and every search filters on it, so one tenant
// can never read another tenant's documents.
package recall
