package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "new":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Usage: blogkit new <project-name>")
			os.Exit(1)
		}
		err = runNew(os.Args[2])
	case "og":
		err = runOG(os.Args[2:])
	case "version":
		fmt.Printf("blogkit %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`blogkit - A themeable blog front-end for GraphQL-hosted publications

Usage:
  blogkit <command> [arguments]

Commands:
  serve             Start the web server
  new <name>        Create a new blogkit project
  og post <slug>    Print the Open Graph image URL of a post
  og home           Print the Open Graph image URL of the home page
  version           Print the blogkit version
  help              Show this help message

Environment:
  PUBLICATION_HOST  Publication host, e.g. blog.example.com (required)
  SESSION_SECRET    Session encryption secret (required for serve)
  GQL_ENDPOINT      Content API endpoint (default https://gql.hashnode.com)
  THEME             enterprise, documentation or magazine (default enterprise)

Examples:
  blogkit serve
  blogkit new myblog
  blogkit og post hello-world`)
}
