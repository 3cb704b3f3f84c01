// Package main is the entry point for the Sentinel RAG service.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/sentinel-rag/internal/rag"
)

func main() {
	rag.NewApp().Run()
}
