// Command ragpipe is the CLI entry point over internal/pipeline.
package main

import "github.com/wovenweb/ragpipe/internal/cli"

func main() {
	cli.Execute()
}
