package main

import "github.com/jantenpas/llm-eval-studio/internal/cli"

func main() {
	cli.Execute()
}
