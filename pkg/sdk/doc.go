// Package sdk is the HTTP client for a recall service. It mirrors the
// service routes with typed requests and responses and maps API error
// codes back to sentinel errors.
//
//	client, _ := sdk.New("http://localhost:8080", sdk.WithAPIKey("secret"))
//	coll := client.Collection("acme", "faq")
//	ids, _ := coll.AddDocuments(ctx, []sdk.Document{{Text: "we open at 9am"}})
//	results, _ := coll.Search(ctx, "business hours", &sdk.SearchOptions{Hybrid: true})
//
// Index and embedding outages on the service side surface as empty search
// results, matching the service's degraded mode. Authorization and quota
// failures surface as typed errors:
//
//	if errors.Is(err, sdk.ErrQuotaExceeded) { ... }
package sdk
