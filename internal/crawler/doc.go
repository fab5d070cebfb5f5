// Package crawler holds the core ingestion types and the breadth-first,
// same-host crawl scheduler, plus the store, sink and fetcher contracts the
// rest of the service implements.
package crawler
