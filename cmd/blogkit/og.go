package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/eringen/blogkit"
	"github.com/eringen/blogkit/content"
	"github.com/eringen/blogkit/og"
)

func runOG(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: blogkit og post <slug> | blogkit og home")
	}
	host := blogkit.MustEnv("PUBLICATION_HOST")
	client := content.NewClient(blogkit.EnvOr("GQL_ENDPOINT", "https://gql.hashnode.com"))
	builder := og.NewBuilder(host)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var res og.Result
	switch args[0] {
	case "post":
		if len(args) < 2 {
			return fmt.Errorf("usage: blogkit og post <slug>")
		}
		_, post, err := client.SinglePost(ctx, host, args[1])
		if err != nil {
			return err
		}
		res = builder.BuildPost(og.PostInputFrom(post.PostSummary))
	case "home":
		pub, err := client.PostsByPublication(ctx, host, 1)
		if err != nil {
			return err
		}
		res = builder.BuildPublication(og.PublicationInputFrom(*pub))
	default:
		return fmt.Errorf("unknown og target %q", args[0])
	}

	fmt.Println(res.URL)
	fmt.Fprintf(os.Stderr, "payload: %s\n", res.JSON)
	if res.Partial {
		fmt.Fprintf(os.Stderr, "partial: %v\n", res.Err)
	}
	return nil
}
