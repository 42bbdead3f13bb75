// Package dataprocessing implements the core credit data pipeline. It
// consolidates extraction, flattening, and metric calculation into a cohesive
// package that handles the complete lifecycle from XML ingestion to exported
// artifacts.
//
// # Architecture
//
// The package is organized into four main components:
//
// 1. Extractor: Parses per-client XML documents into client/deal/period records
// 2. Flattener: Projects the hierarchy onto deduplicated flat rows
// 3. Calculator: Reduces flat rows to per-client risk metrics
// 4. Pipeline: Orchestrates the stages and writes the artifacts
//
// # Usage
//
// Extract a single document:
//
//	extractor := dataprocessing.NewExtractor(logger)
//	client, err := extractor.ExtractFile("Data/client_1.xml")
//	if err != nil {
//	    // the document is malformed, skip it and move on
//	}
//
// Run the whole pipeline over a directory:
//
//	pipeline := dataprocessing.NewPipeline(cfg, logger, metrics)
//	summary, err := pipeline.Run(ctx, dataprocessing.RunOptions{DataDir: "Data"})
//
// # Missing Values
//
// Source attributes are frequently absent, empty, or carry textual null
// sentinels. Field conversion never fails a document: unusable values become
// nil and stay nil through the flat rows and the CSV cells. Integers that
// arrive as floats are accepted only when integral ("45.0" is 45, "45.7" is
// nil).
//
// # Determinism
//
// Documents are processed in file-name order, rows keep document order per
// client, and metrics are sorted by client id, so repeated runs over the same
// corpus produce byte-identical artifacts.
package dataprocessing
