package main

import "github.com/thepingdoctor/scrape-api-docs/internal/cli"

func main() {
	cli.Execute()
}
