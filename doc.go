// Package finsearch is a semantic retrieval engine for personal-finance
// records. An offline Builder formats bills and transactions into
// canonical text, embeds them in batch, and publishes an immutable
// artifact generation (vector index, metadata, model descriptor) to a
// blob store. An online Retriever lazily loads the current generation
// and answers nearest-k searches over it, joining vector hits back to
// their records by row ordinal.
//
// Build an index:
//
//	store := blobstore.NewLocalStore("/var/lib/finsearch")
//	builder := finsearch.NewBuilder(embedding.NewHash(256), store)
//	if _, err := builder.Build(ctx, records); err != nil {
//		log.Fatal(err)
//	}
//
// Search it:
//
//	retriever := finsearch.NewRetriever(store)
//	results, err := retriever.Search("electric payment").
//		K(5).
//		ForUser(42).
//		Execute(ctx)
package finsearch
