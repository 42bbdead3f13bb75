// Package files provides file system discovery utilities for the credit
// risk pipeline.
//
// Discovery locates XML source documents and other artifacts on disk. All
// listings are returned sorted by file name so downstream processing is
// deterministic regardless of platform directory ordering.
//
// Example usage:
//
//	discovery := files.NewDiscovery("/path/to/base")
//
//	// Find all client source documents
//	docs, err := discovery.FindSourceDocuments("Data")
//
//	// Derive the client id for each document
//	for _, doc := range docs {
//		clientID := files.ClientIDFromPath(doc.Path)
//		_ = clientID
//	}
package files
