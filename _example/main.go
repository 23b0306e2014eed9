package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"time"

	"github.com/paydesk/finsearch"
	"github.com/paydesk/finsearch/blobstore"
	"github.com/paydesk/finsearch/embedding"
	"github.com/paydesk/finsearch/record"
)

func main() {
	ctx := context.Background()

	store := blobstore.NewLocalStore("./finsearch-data")
	embedder := embedding.NewHash(256)

	records := []record.Record{
		record.Bill{ID: 1, UserID: 1, Name: "Internet", Amount: 60.00, DueDate: record.Date(2023, time.October, 20), Status: "paid"},
		record.Bill{ID: 2, UserID: 1, Name: "Rent", Amount: 1450.00, DueDate: record.Date(2023, time.November, 1), Status: "unpaid"},
		record.Transaction{ID: 3, UserID: 1, Description: "Last Month Electric", Amount: 120.50, Date: record.Date(2023, time.September, 15)},
		record.Transaction{ID: 4, UserID: 1, Description: "Grocery Store", Amount: 84.12, Date: record.Date(2023, time.September, 18)},
	}

	fmt.Println("--- Build ---")

	builder := finsearch.NewBuilder(embedder, store, func(o *finsearch.Options) {
		o.Logger = finsearch.NewTextLogger(slog.LevelInfo)
	})

	desc, err := builder.Build(ctx, records)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Model:", desc.ModelName)
	fmt.Println("Dimension:", desc.Dimension)
	fmt.Println("Vectors:", desc.VectorCount)

	fmt.Println("--- Search ---")

	retriever := finsearch.NewRetriever(store)

	results, err := retriever.Search("electric payment").K(3).Execute(ctx)
	if err != nil {
		log.Fatal(err)
	}

	for _, r := range results {
		fmt.Printf("%d. %s (distance %.4f)\n", r.Rank, r.Text, r.Distance)
	}
}
