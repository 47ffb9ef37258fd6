// Package extract pulls plain text out of web pages, PDF files and text uploads
// so the ingestion pipeline can chunk it.
package extract
