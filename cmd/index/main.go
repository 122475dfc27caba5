package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"inredd/internal/dataset"
	"inredd/internal/models"
	"inredd/internal/repository/sqlite"
	"inredd/internal/services/imaging"
)

func main() {
	root := flag.String("root", ".", "Dataset root containing images/ and annotations/")
	split := flag.String("split", "train", "Split to index (train or test)")
	dbPath := flag.String("db", "data/index.db", "Database path")
	strict := flag.Bool("strict", false, "Abort on the first schema violation")
	workers := flag.Int("workers", dataset.DefaultWorkers, "Parse worker count")
	flag.Parse()

	fmt.Printf("Indexing split %q from %s into %s\n", *split, *root, *dbPath)

	store, err := dataset.Load(context.Background(), dataset.Options{
		Root:    *root,
		Split:   *split,
		Strict:  *strict,
		Workers: *workers,
		Sizer:   imaging.NewProber(),
	})
	if err != nil {
		log.Fatalf("Failed to load split: %v", err)
	}

	report := store.Report()
	if report.Skipped > 0 {
		fmt.Printf("⚠️  Skipped %d annotation file(s):\n", report.Skipped)
		for _, w := range report.Warnings {
			fmt.Printf("   %s: %s\n", w.File, w.Reason)
		}
	}
	if store.Len() == 0 {
		fmt.Println("No records found to index")
		return
	}

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	imageRepo := sqlite.NewImageRepository(db)
	annotationRepo := sqlite.NewAnnotationRepository(db)

	if err := imageRepo.DeleteBySplit(*split); err != nil {
		log.Fatalf("Failed to clear previous index: %v", err)
	}

	fmt.Printf("Inserting %d image record(s) into database...\n", store.Len())
	for rec := range store.All() {
		rowID, err := imageRepo.Insert(rec, *split)
		if err != nil {
			log.Fatalf("Failed to insert %s: %v", rec.ImageID, err)
		}
		if len(rec.Teeth) > 0 {
			if err := annotationRepo.InsertBatch(rowID, rec.Teeth); err != nil {
				log.Fatalf("Failed to insert annotations of %s: %v", rec.ImageID, err)
			}
		}
	}

	fmt.Printf("✅ Successfully indexed %d record(s) of split %q\n", store.Len(), *split)

	stats, err := imageRepo.GetStats(*split)
	if err != nil {
		return
	}
	printStats(stats)
}

// printStats renders the indexed split summary.
func printStats(stats *models.SplitStats) {
	fmt.Printf("\n📊 Split Statistics:\n")
	fmt.Printf("   Images         : %d\n", stats.TotalImages)
	fmt.Printf("   Bounding boxes : %d\n", stats.TotalBBoxes)
	fmt.Printf("   Boxes / image  : mean %.2f  median %g  min %d  max %d\n",
		stats.BoxesPerImage.Mean, stats.BoxesPerImage.Median,
		stats.BoxesPerImage.Min, stats.BoxesPerImage.Max)

	fmt.Printf("   Image status:\n")
	for _, status := range sortedKeys(stats.PerStatus) {
		fmt.Printf("      - %s: %d\n", status, stats.PerStatus[status])
	}

	fmt.Printf("   Conditions:\n")
	for _, name := range sortedKeys(stats.PerCondition) {
		fmt.Printf("      - %s: %d\n", name, stats.PerCondition[name])
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
