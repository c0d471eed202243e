package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"filingsresearch/pkg/core/config"
	"filingsresearch/pkg/core/research"
)

func main() {
	var (
		company   = flag.String("company", "", "company name or ticker to resolve to CIK registrants")
		cik       = flag.String("cik", "", "CIK to list filings for")
		form      = flag.String("form", "10-K", "form type to list")
		count     = flag.Int("count", 5, "maximum filings to list")
		filingURL = flag.String("url", "", "filing URL to extract and chunk")
		chunkIdx  = flag.Int("chunk", -1, "chunk index (-1 for chunk metadata)")
		chunkSize = flag.Int("chunk-size", 50000, "maximum characters per chunk")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	cfg := config.Load()

	logger := zap.NewNop()
	if *verbose {
		logger = zap.Must(zap.NewProduction())
	}
	defer logger.Sync()

	svc := research.NewService(cfg, logger)
	ctx := context.Background()

	switch {
	case *company != "":
		regs := svc.FindCIK(ctx, *company)
		if len(regs) == 0 {
			fmt.Printf("No registrants found for %q\n", *company)
			return
		}
		printJSON(regs)

	case *filingURL != "":
		fmt.Println(svc.SummarizeFiling(ctx, *filingURL, *chunkIdx, *chunkSize))

	case *cik != "":
		results := svc.FindFilings(ctx, *cik, *form, *count)
		if len(results) == 0 {
			fmt.Printf("No %s filings found for CIK %s\n", *form, *cik)
			return
		}
		printJSON(results)

	default:
		fmt.Fprintln(os.Stderr, "usage: filings -company NAME | -cik CIK [-form TYPE] [-count N] | -url URL [-chunk N] [-chunk-size N]")
		flag.PrintDefaults()
		os.Exit(2)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encoding results: %v", err)
	}
	fmt.Println(string(out))
}
